package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
	"github.com/radieske/wager-platform/internal/wager-service/matching"
	"github.com/radieske/wager-platform/internal/wager-service/repo"
	"github.com/radieske/wager-platform/internal/wager-service/resolution"
	"github.com/radieske/wager-platform/pkg/contracts/events"
)

// Limites de entrada
const (
	maxGameTypeLen    = 64
	maxTitleLen       = 120
	maxDescriptionLen = 1000
	maxCodeLen        = 64
	maxReasonLen      = 500
	expireBatch       = 100
)

// Motivos de cancelamento gravados em cancel_reason
const (
	ReasonCancelledByCreator = "cancelled by creator"
	ReasonCancelledByAdmin   = "cancelled by admin"
	ReasonExpired            = "expired"
)

// CreateWagerInput são os dados de uma nova oferta.
type CreateWagerInput struct {
	CreatorID   string
	Points      int64
	GameType    string
	Title       *string
	Description *string
}

// CreateWager reserva o stake, grava a oferta e tenta parear na mesma transação.
// Devolve a aposta do criador (ACCEPTED se houve pareamento, PENDING caso contrário).
func (e *Engine) CreateWager(ctx context.Context, in CreateWagerInput) (*domain.Wager, error) {
	in.GameType = strings.TrimSpace(in.GameType)
	in.Title = optional(in.Title)
	in.Description = optional(in.Description)
	if err := e.validateCreate(in); err != nil {
		return nil, e.fail("create", err)
	}

	id := e.opts.NewID()
	var out *domain.Wager
	err := e.run(ctx, "create", func(tx repo.Tx, rec *recorder) error {
		w := &domain.Wager{
			ID:          id,
			CreatorID:   in.CreatorID,
			Points:      in.Points,
			GameType:    in.GameType,
			Title:       in.Title,
			Description: in.Description,
			Status:      domain.StatusPending,
			Side:        domain.SideCreator,
			CreatedAt:   rec.at,
			ExpiresAt:   rec.at.Add(e.opts.TTL),
			UpdatedAt:   rec.at,
		}
		if err := e.ledger.Reserve(ctx, tx, w.CreatorID, w.Points, w.ID); err != nil {
			return err
		}
		rec.points(domain.EntryCreation, w.Points)
		if err := tx.InsertWager(ctx, w); err != nil {
			return fmt.Errorf("insert wager: %w", err)
		}
		rec.moved(w, "")

		m, err := e.matcher.TryMatch(ctx, tx, w, rec.at)
		if err != nil {
			return err
		}
		if m == nil {
			rec.emit(wagerEvent(events.TypeWagerCreated, w, w.CreatorID))
			out = w
			return nil
		}
		rec.moved(m.Offer, domain.StatusPending)
		rec.moved(m.Taker, domain.StatusPending)
		rec.pairEvents(events.TypeWagerMatched, []*domain.Wager{m.Offer, m.Taker}, nil)
		out = m.Taker
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) validateCreate(in CreateWagerInput) error {
	switch {
	case strings.TrimSpace(in.CreatorID) == "":
		return fmt.Errorf("%w: creator id required", domain.ErrInvalidInput)
	case in.Points < e.opts.MinStake:
		return fmt.Errorf("%w: stake %d below minimum %d", domain.ErrInvalidInput, in.Points, e.opts.MinStake)
	case in.GameType == "":
		return fmt.Errorf("%w: game type required", domain.ErrInvalidInput)
	case len(in.GameType) > maxGameTypeLen:
		return fmt.Errorf("%w: game type too long", domain.ErrInvalidInput)
	case in.Title != nil && len(*in.Title) > maxTitleLen:
		return fmt.Errorf("%w: title too long", domain.ErrInvalidInput)
	case in.Description != nil && len(*in.Description) > maxDescriptionLen:
		return fmt.Errorf("%w: description too long", domain.ErrInvalidInput)
	}
	return nil
}

// AcceptWager cria a aposta do lado ACCEPTOR, reserva o stake do aceitante e liga o par.
// Qualquer falha deixa o ledger intacto.
func (e *Engine) AcceptWager(ctx context.Context, wagerID, acceptorID string) (*domain.Wager, error) {
	if strings.TrimSpace(acceptorID) == "" {
		return nil, e.fail("accept", fmt.Errorf("%w: acceptor id required", domain.ErrInvalidInput))
	}

	id := e.opts.NewID()
	var out *domain.Wager
	err := e.run(ctx, "accept", func(tx repo.Tx, rec *recorder) error {
		ws, err := tx.LockWagers(ctx, wagerID)
		if err != nil {
			return err
		}
		offer := ws[0]
		if err := domain.RequireStatus("accept", offer, domain.StatusPending); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrWagerUnavailable, err)
		}
		if offer.IsPaired() || offer.Side != domain.SideCreator {
			return fmt.Errorf("%w: wager %s already paired", domain.ErrWagerUnavailable, offer.ID)
		}
		if offer.IsExpired(rec.at) {
			return fmt.Errorf("%w: wager %s expired", domain.ErrWagerUnavailable, offer.ID)
		}
		if offer.CreatorID == acceptorID {
			return fmt.Errorf("%w: cannot accept own wager", domain.ErrWagerUnavailable)
		}

		taker := &domain.Wager{
			ID:          id,
			CreatorID:   acceptorID,
			Points:      offer.Points,
			GameType:    offer.GameType,
			Title:       offer.Title,
			Description: offer.Description,
			Status:      domain.StatusPending,
			Side:        domain.SideAcceptor,
			CreatedAt:   rec.at,
			ExpiresAt:   rec.at.Add(e.opts.TTL),
			UpdatedAt:   rec.at,
		}
		if err := e.ledger.Reserve(ctx, tx, acceptorID, taker.Points, taker.ID); err != nil {
			return err
		}
		rec.points(domain.EntryCreation, taker.Points)
		if err := tx.InsertWager(ctx, taker); err != nil {
			return fmt.Errorf("insert wager: %w", err)
		}

		if err := matching.Link(offer, taker, rec.at); err != nil {
			return err
		}
		if err := tx.UpdateWager(ctx, offer, domain.StatusPending); err != nil {
			return err
		}
		if err := tx.UpdateWager(ctx, taker, domain.StatusPending); err != nil {
			return err
		}
		rec.moved(offer, domain.StatusPending)
		rec.moved(taker, domain.StatusPending)
		rec.pairEvents(events.TypeWagerMatched, []*domain.Wager{offer, taker}, nil)
		out = taker
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ShareCode grava o código do jogo nas duas apostas. Só o criador da oferta pode.
func (e *Engine) ShareCode(ctx context.Context, wagerID, code, requesterID string) (*domain.Wager, error) {
	code = strings.TrimSpace(code)
	if code == "" || len(code) > maxCodeLen {
		return nil, e.fail("share_code", fmt.Errorf("%w: code must have 1..%d chars", domain.ErrInvalidInput, maxCodeLen))
	}

	hint := e.counterpartHint(ctx, wagerID)
	var out *domain.Wager
	err := e.run(ctx, "share_code", func(tx repo.Tx, rec *recorder) error {
		self, other, err := lockPair(ctx, tx, wagerID, hint)
		if err != nil {
			return err
		}
		pair, err := requirePair("share_code", self, other, domain.StatusAccepted)
		if err != nil {
			return err
		}
		creator, _, err := resolution.BySide(pair[0], pair[1])
		if err != nil {
			return err
		}
		if requesterID != creator.CreatorID {
			return fmt.Errorf("%w: %s", domain.ErrNotCreator, requesterID)
		}

		for _, w := range pair {
			if err := w.Transition(domain.StatusCodeShared); err != nil {
				return err
			}
			w.SharedCode = domain.Ptr(code)
			w.CodeSharedAt = domain.Ptr(rec.at)
			w.UpdatedAt = rec.at
			if err := tx.UpdateWager(ctx, w, domain.StatusAccepted); err != nil {
				return err
			}
			rec.moved(w, domain.StatusAccepted)
		}
		rec.pairEvents(events.TypeCodeShared, pair, func(ev *events.WagerEvent) { ev.Code = code })
		out = self
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitResult grava a declaração do participante na própria aposta dele.
// Quando os dois lados já declararam, resolve o par na mesma transação.
func (e *Engine) SubmitResult(ctx context.Context, wagerID, requesterID string, result domain.Result, evidenceRef *string) (*domain.Wager, error) {
	if _, ok := domain.ParseResult(string(result)); !ok {
		return nil, e.fail("submit_result", fmt.Errorf("%w: result must be WIN or LOSE", domain.ErrInvalidInput))
	}
	evidenceRef = optional(evidenceRef)

	hint := e.counterpartHint(ctx, wagerID)
	var out *domain.Wager
	err := e.run(ctx, "submit_result", func(tx repo.Tx, rec *recorder) error {
		self, other, err := lockPair(ctx, tx, wagerID, hint)
		if err != nil {
			return err
		}
		if _, err := requirePair("submit_result", self, other, domain.StatusCodeShared); err != nil {
			return err
		}

		var mine, theirs *domain.Wager
		switch requesterID {
		case self.CreatorID:
			mine, theirs = self, other
		case other.CreatorID:
			mine, theirs = other, self
		default:
			return fmt.Errorf("%w: %s", domain.ErrNotParticipant, requesterID)
		}
		if mine.SelfSubmitted {
			return fmt.Errorf("%w: wager %s", domain.ErrAlreadySubmitted, mine.ID)
		}

		mine.SelfResult = result
		mine.SelfSubmitted = true
		mine.EvidenceRef = evidenceRef
		mine.UpdatedAt = rec.at
		if err := tx.UpdateWager(ctx, mine, domain.StatusCodeShared); err != nil {
			return err
		}
		ev := wagerEvent(events.TypeResultSubmitted, mine, mine.CreatorID, theirs.CreatorID)
		ev.AccountID = requesterID
		ev.Result = string(result)
		rec.emit(ev)
		out = mine

		if !theirs.SelfSubmitted {
			return nil
		}
		res, err := e.resolver.Resolve(ctx, tx, mine, theirs, rec.at)
		if err != nil {
			return err
		}
		rec.resolved(res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelWager cancela uma oferta PENDING ou um par ACCEPTED, devolvendo os stakes.
func (e *Engine) CancelWager(ctx context.Context, wagerID, requesterID string) (*domain.Wager, error) {
	hint := e.counterpartHint(ctx, wagerID)
	var out *domain.Wager
	err := e.run(ctx, "cancel", func(tx repo.Tx, rec *recorder) error {
		self, other, err := lockPair(ctx, tx, wagerID, hint)
		if err != nil {
			return err
		}
		pair, err := requirePair("cancel", self, other, domain.StatusPending, domain.StatusAccepted)
		if err != nil {
			return err
		}
		owner := self
		if other != nil && other.Side == domain.SideCreator {
			owner = other
		}
		if requesterID != owner.CreatorID {
			return fmt.Errorf("%w: %s", domain.ErrNotCreator, requesterID)
		}
		if err := e.cancelPair(ctx, tx, rec, pair, ReasonCancelledByCreator); err != nil {
			return err
		}
		out = self
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdminCancel é o override administrativo: cancela PENDING, ACCEPTED ou DISPUTED
// devolvendo cada stake reservado.
func (e *Engine) AdminCancel(ctx context.Context, wagerID, reason string) (*domain.Wager, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ReasonCancelledByAdmin
	}
	if len(reason) > maxReasonLen {
		return nil, e.fail("admin_cancel", fmt.Errorf("%w: reason too long", domain.ErrInvalidInput))
	}

	hint := e.counterpartHint(ctx, wagerID)
	var out *domain.Wager
	err := e.run(ctx, "admin_cancel", func(tx repo.Tx, rec *recorder) error {
		self, other, err := lockPair(ctx, tx, wagerID, hint)
		if err != nil {
			return err
		}
		pair, err := requirePair("admin_cancel", self, other, domain.StatusPending, domain.StatusAccepted, domain.StatusDisputed)
		if err != nil {
			return err
		}
		if err := e.cancelPair(ctx, tx, rec, pair, reason); err != nil {
			return err
		}
		out = self
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveDispute decide um par DISPUTED a favor de winnerID. Uma segunda chamada
// falha com ErrInvalidWagerState (o par já está COMPLETED).
func (e *Engine) ResolveDispute(ctx context.Context, wagerID, winnerID, notes string) (*domain.Wager, error) {
	notesPtr := optional(&notes)
	if notesPtr != nil && len(*notesPtr) > maxDescriptionLen {
		return nil, e.fail("resolve_dispute", fmt.Errorf("%w: notes too long", domain.ErrInvalidInput))
	}

	hint := e.counterpartHint(ctx, wagerID)
	var out *domain.Wager
	err := e.run(ctx, "resolve_dispute", func(tx repo.Tx, rec *recorder) error {
		self, other, err := lockPair(ctx, tx, wagerID, hint)
		if err != nil {
			return err
		}
		pair, err := requirePair("resolve_dispute", self, other, domain.StatusDisputed)
		if err != nil {
			return err
		}
		creator, acceptor, err := resolution.BySide(pair[0], pair[1])
		if err != nil {
			return err
		}
		res, err := e.resolver.Payout(ctx, tx, creator, acceptor, winnerID, notesPtr, rec.at)
		if err != nil {
			return err
		}
		rec.resolved(res)
		out = self
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpireStale cancela ofertas PENDING/ACCEPTED vencidas pelo caminho normal de
// cancelamento. Apostas que mudaram de estado no meio do caminho são ignoradas.
func (e *Engine) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := e.store.ListExpired(ctx, now, expireBatch)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}

	var (
		n    int
		errs []error
	)
	for _, w := range stale {
		err := e.run(ctx, "expire", func(tx repo.Tx, rec *recorder) error {
			self, other, err := lockPair(ctx, tx, w.ID, w.Counterpart())
			if err != nil {
				return err
			}
			pair, err := requirePair("expire", self, other, domain.StatusPending, domain.StatusAccepted)
			if err != nil {
				return err
			}
			if self.Side != domain.SideCreator || !self.IsExpired(now) {
				return &domain.StateError{Op: "expire", WagerID: self.ID, Status: self.Status}
			}
			return e.cancelPair(ctx, tx, rec, pair, ReasonExpired)
		})
		switch {
		case err == nil:
			n++
		case errors.Is(err, domain.ErrInvalidWagerState), errors.Is(err, domain.ErrWagerNotFound):
			e.log.Debug("expire skipped", zap.String("wager_id", w.ID), zap.Error(err))
		default:
			errs = append(errs, fmt.Errorf("expire %s: %w", w.ID, err))
		}
	}
	return n, errors.Join(errs...)
}

// cancelPair cancela e reembolsa cada aposta do par (contas travadas antes, em ordem).
func (e *Engine) cancelPair(ctx context.Context, tx repo.Tx, rec *recorder, pair []*domain.Wager, reason string) error {
	ids := make([]string, 0, len(pair))
	for _, w := range pair {
		ids = append(ids, w.CreatorID)
	}
	if _, err := tx.LockAccounts(ctx, ids...); err != nil {
		return err
	}
	for _, w := range pair {
		from := w.Status
		if err := w.Transition(domain.StatusCancelled); err != nil {
			return err
		}
		w.CancelReason = domain.Ptr(reason)
		w.UpdatedAt = rec.at
		if err := tx.UpdateWager(ctx, w, from); err != nil {
			return err
		}
		if err := e.ledger.Release(ctx, tx, w.CreatorID, w.Points, w.ID); err != nil {
			return err
		}
		rec.points(domain.EntryRefund, w.Points)
		rec.moved(w, from)
	}
	rec.pairEvents(events.TypeWagerCancelled, pair, func(ev *events.WagerEvent) { ev.Reason = reason })
	return nil
}

// GetWager devolve uma aposta pelo id.
func (e *Engine) GetWager(ctx context.Context, id string) (*domain.Wager, error) {
	return e.store.GetWager(ctx, id)
}

// ListActiveWagers lista as apostas não terminais da conta.
func (e *Engine) ListActiveWagers(ctx context.Context, accountID string) ([]*domain.Wager, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.store.ListActiveForAccount(ctx, accountID)
}

// counterpartHint lê (sem trava) a contraparte para travar o par em ordem de id.
func (e *Engine) counterpartHint(ctx context.Context, wagerID string) string {
	w, err := e.store.GetWager(ctx, wagerID)
	if err != nil {
		return ""
	}
	return w.Counterpart()
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
