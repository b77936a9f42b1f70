package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
	"github.com/radieske/wager-platform/internal/wager-service/dto"
	"github.com/radieske/wager-platform/internal/wager-service/engine"
)

// WagerService é o que a API precisa do motor (implementado por *engine.Engine)
type WagerService interface {
	OpenAccount(ctx context.Context, accountID string) (*domain.Account, error)
	AdjustAccount(ctx context.Context, accountID string, delta int64, description string) (*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListEntries(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error)
	ListActiveWagers(ctx context.Context, accountID string) ([]*domain.Wager, error)

	CreateWager(ctx context.Context, in engine.CreateWagerInput) (*domain.Wager, error)
	GetWager(ctx context.Context, id string) (*domain.Wager, error)
	AcceptWager(ctx context.Context, wagerID, acceptorID string) (*domain.Wager, error)
	ShareCode(ctx context.Context, wagerID, code, requesterID string) (*domain.Wager, error)
	SubmitResult(ctx context.Context, wagerID, requesterID string, result domain.Result, evidenceRef *string) (*domain.Wager, error)
	CancelWager(ctx context.Context, wagerID, requesterID string) (*domain.Wager, error)
	AdminCancel(ctx context.Context, wagerID, reason string) (*domain.Wager, error)
	ResolveDispute(ctx context.Context, wagerID, winnerID, notes string) (*domain.Wager, error)
}

const adminTokenHeader = "X-Admin-Token"

type Server struct {
	log        *zap.Logger
	svc        WagerService
	adminToken string
}

// NewServer monta a API; adminToken vazio desliga as rotas /admin.
func NewServer(log *zap.Logger, svc WagerService, adminToken string) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{log: log, svc: svc, adminToken: adminToken}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/accounts", s.openAccount)
		r.Get("/accounts/{id}", s.getAccount)
		r.Get("/accounts/{id}/entries", s.listEntries)
		r.Get("/accounts/{id}/wagers", s.listWagers)

		r.Post("/wagers", s.createWager)
		r.Get("/wagers/{id}", s.getWager)
		r.Post("/wagers/{id}/accept", s.acceptWager)
		r.Post("/wagers/{id}/code", s.shareCode)
		r.Post("/wagers/{id}/result", s.submitResult)
		r.Post("/wagers/{id}/cancel", s.cancelWager)
	})

	if s.adminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/wagers/{id}/resolve", s.resolveDispute)
			r.Post("/wagers/{id}/cancel", s.adminCancel)
			r.Post("/accounts/{id}/adjust", s.adjustAccount)
		})
	}
	return r
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(adminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid admin token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// contas

func (s *Server) openAccount(w http.ResponseWriter, r *http.Request) {
	var req dto.OpenAccountRequest
	if !s.decode(w, r, &req) {
		return
	}
	acc, err := s.svc.OpenAccount(r.Context(), req.AccountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewAccountResponse(acc))
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.svc.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewAccountResponse(acc))
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "limit must be a non-negative integer", Kind: "invalid_input"})
			return
		}
		limit = n
	}
	entries, err := s.svc.ListEntries(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewEntryList(entries))
}

func (s *Server) listWagers(w http.ResponseWriter, r *http.Request) {
	ws, err := s.svc.ListActiveWagers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewWagerList(ws))
}

// apostas

func (s *Server) createWager(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateWagerRequest
	if !s.decode(w, r, &req) {
		return
	}
	wg, err := s.svc.CreateWager(r.Context(), engine.CreateWagerInput{
		CreatorID:   req.CreatorID,
		Points:      req.Points,
		GameType:    req.GameType,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewWagerResponse(wg))
}

func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	wg, err := s.svc.GetWager(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewWagerResponse(wg))
}

func (s *Server) acceptWager(w http.ResponseWriter, r *http.Request) {
	var req dto.AcceptWagerRequest
	if !s.decode(w, r, &req) {
		return
	}
	wg, err := s.svc.AcceptWager(r.Context(), chi.URLParam(r, "id"), req.AcceptorID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewWagerResponse(wg))
}

func (s *Server) shareCode(w http.ResponseWriter, r *http.Request) {
	var req dto.ShareCodeRequest
	if !s.decode(w, r, &req) {
		return
	}
	wg, err := s.svc.ShareCode(r.Context(), chi.URLParam(r, "id"), req.Code, req.RequesterID)
	s.respondWager(w, r, wg, err)
}

func (s *Server) submitResult(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitResultRequest
	if !s.decode(w, r, &req) {
		return
	}
	// validator já garantiu WIN|LOSE
	res, _ := domain.ParseResult(req.Result)
	wg, err := s.svc.SubmitResult(r.Context(), chi.URLParam(r, "id"), req.RequesterID, res, req.EvidenceRef)
	s.respondWager(w, r, wg, err)
}

func (s *Server) cancelWager(w http.ResponseWriter, r *http.Request) {
	var req dto.CancelWagerRequest
	if !s.decode(w, r, &req) {
		return
	}
	wg, err := s.svc.CancelWager(r.Context(), chi.URLParam(r, "id"), req.RequesterID)
	s.respondWager(w, r, wg, err)
}

// admin

func (s *Server) resolveDispute(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveDisputeRequest
	if !s.decode(w, r, &req) {
		return
	}
	wg, err := s.svc.ResolveDispute(r.Context(), chi.URLParam(r, "id"), req.WinnerID, req.Notes)
	s.respondWager(w, r, wg, err)
}

func (s *Server) adminCancel(w http.ResponseWriter, r *http.Request) {
	var req dto.AdminCancelRequest
	if !s.decode(w, r, &req) {
		return
	}
	wg, err := s.svc.AdminCancel(r.Context(), chi.URLParam(r, "id"), req.Reason)
	s.respondWager(w, r, wg, err)
}

func (s *Server) adjustAccount(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustAccountRequest
	if !s.decode(w, r, &req) {
		return
	}
	acc, err := s.svc.AdjustAccount(r.Context(), chi.URLParam(r, "id"), req.Points, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewAccountResponse(acc))
}

func (s *Server) respondWager(w http.ResponseWriter, r *http.Request, wg *domain.Wager, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewWagerResponse(wg))
}

// decode lê o corpo JSON e aplica as tags de validação; false = resposta já escrita
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json", Kind: "invalid_input"})
		return false
	}
	if err := dto.Validate(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Kind: "invalid_input"})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, status, dto.ErrorResponse{Error: "internal error", Kind: "internal"})
		return
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error(), Kind: domain.Kind(err)})
}

// StatusFor traduz os erros de negócio para status HTTP
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrNegativeAdjustment):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrNotCreator), errors.Is(err, domain.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrWagerUnavailable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrWagerNotFound), errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidWagerState), errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrStaleWager), errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrAccountExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
