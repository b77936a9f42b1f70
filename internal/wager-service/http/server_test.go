package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
	"github.com/radieske/wager-platform/internal/wager-service/dto"
	"github.com/radieske/wager-platform/internal/wager-service/engine"
	"github.com/radieske/wager-platform/internal/wager-service/repo"
)

const testToken = "s3cret"

type apiClient struct {
	t *testing.T
	h http.Handler
}

func newAPI(t *testing.T, adminToken string) *apiClient {
	t.Helper()
	eng := engine.New(repo.NewMemory(), engine.NopNotifier{}, zaptest.NewLogger(t), nil, engine.DefaultOptions())
	return &apiClient{t: t, h: NewServer(zaptest.NewLogger(t), eng, adminToken).Router()}
}

func (c *apiClient) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	c.h.ServeHTTP(rr, req)
	return rr
}

func (c *apiClient) fund(id string, pts int64) {
	c.t.Helper()
	rr := c.do(http.MethodPost, "/v1/accounts", dto.OpenAccountRequest{AccountID: id})
	require.Equal(c.t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = c.do(http.MethodPost, "/admin/accounts/"+id+"/adjust",
		dto.AdjustAccountRequest{Points: pts, Description: "seed"}, adminTokenHeader, testToken)
	require.Equal(c.t, http.StatusOK, rr.Code, rr.Body.String())
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestAPI_FullLifecycle(t *testing.T) {
	api := newAPI(t, testToken)
	api.fund("alice", 1000)
	api.fund("bob", 1000)

	rr := api.do(http.MethodPost, "/v1/wagers", dto.CreateWagerRequest{CreatorID: "alice", Points: 100, GameType: "chess"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	offer := decodeBody[dto.WagerResponse](t, rr)
	assert.Equal(t, "PENDING", offer.Status)

	rr = api.do(http.MethodPost, "/v1/wagers/"+offer.WagerID+"/accept", dto.AcceptWagerRequest{AcceptorID: "bob"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	taker := decodeBody[dto.WagerResponse](t, rr)
	assert.Equal(t, "ACCEPTED", taker.Status)
	assert.Equal(t, "ACCEPTOR", taker.Side)
	require.NotNil(t, taker.CounterpartID)
	assert.Equal(t, offer.WagerID, *taker.CounterpartID)

	rr = api.do(http.MethodPost, "/v1/wagers/"+offer.WagerID+"/code", dto.ShareCodeRequest{RequesterID: "alice", Code: "ROOM-42"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = api.do(http.MethodPost, "/v1/wagers/"+offer.WagerID+"/result", dto.SubmitResultRequest{RequesterID: "alice", Result: "WIN"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = api.do(http.MethodPost, "/v1/wagers/"+taker.WagerID+"/result", dto.SubmitResultRequest{RequesterID: "bob", Result: "LOSE"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	done := decodeBody[dto.WagerResponse](t, rr)
	assert.Equal(t, "COMPLETED", done.Status)
	require.NotNil(t, done.WinnerID)
	assert.Equal(t, "alice", *done.WinnerID)

	rr = api.do(http.MethodGet, "/v1/accounts/alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	acc := decodeBody[dto.AccountResponse](t, rr)
	assert.EqualValues(t, 1100, acc.AvailablePoints)
	assert.Equal(t, 1, acc.Wins)

	rr = api.do(http.MethodGet, "/v1/accounts/alice/entries?limit=10", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	entries := decodeBody[[]dto.LedgerEntryResponse](t, rr)
	assert.Len(t, entries, 3) // ajuste, criação, prêmio

	rr = api.do(http.MethodGet, "/v1/accounts/alice/wagers", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[[]dto.WagerResponse](t, rr))
}

func TestAPI_ErrorMapping(t *testing.T) {
	api := newAPI(t, testToken)
	api.fund("alice", 50)
	api.fund("bob", 1000)

	rr := api.do(http.MethodPost, "/v1/wagers", dto.CreateWagerRequest{CreatorID: "bob", Points: 100, GameType: "chess"})
	require.Equal(t, http.StatusCreated, rr.Code)
	offer := decodeBody[dto.WagerResponse](t, rr)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"below min stake", http.MethodPost, "/v1/wagers", dto.CreateWagerRequest{CreatorID: "bob", Points: 5, GameType: "chess"}, http.StatusBadRequest, "invalid_input"},
		{"missing game type", http.MethodPost, "/v1/wagers", map[string]any{"creatorId": "bob", "points": 100}, http.StatusBadRequest, "invalid_input"},
		{"insufficient funds", http.MethodPost, "/v1/wagers/" + offer.WagerID + "/accept", dto.AcceptWagerRequest{AcceptorID: "alice"}, http.StatusPaymentRequired, "insufficient_funds"},
		{"own wager", http.MethodPost, "/v1/wagers/" + offer.WagerID + "/accept", dto.AcceptWagerRequest{AcceptorID: "bob"}, http.StatusConflict, "wager_unavailable"},
		{"unknown wager", http.MethodGet, "/v1/wagers/nope", nil, http.StatusNotFound, "wager_not_found"},
		{"unknown account", http.MethodGet, "/v1/accounts/nope", nil, http.StatusNotFound, "account_not_found"},
		{"not creator", http.MethodPost, "/v1/wagers/" + offer.WagerID + "/cancel", dto.CancelWagerRequest{RequesterID: "alice"}, http.StatusForbidden, "not_creator"},
		{"code before match", http.MethodPost, "/v1/wagers/" + offer.WagerID + "/code", dto.ShareCodeRequest{RequesterID: "bob", Code: "X"}, http.StatusConflict, "invalid_state"},
		{"bad result", http.MethodPost, "/v1/wagers/" + offer.WagerID + "/result", dto.SubmitResultRequest{RequesterID: "bob", Result: "DRAW"}, http.StatusBadRequest, "invalid_input"},
		{"duplicate account", http.MethodPost, "/v1/accounts", dto.OpenAccountRequest{AccountID: "bob"}, http.StatusConflict, "account_exists"},
		{"bad limit", http.MethodGet, "/v1/accounts/bob/entries?limit=x", nil, http.StatusBadRequest, "invalid_input"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := api.do(tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rr.Code, rr.Body.String())
			assert.Equal(t, tc.kind, decodeBody[dto.ErrorResponse](t, rr).Kind)
		})
	}
}

func TestAPI_BadJSON(t *testing.T) {
	api := newAPI(t, "")
	req := httptest.NewRequest(http.MethodPost, "/v1/wagers", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	api.h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_AdminRoutes(t *testing.T) {
	t.Run("disabled without token", func(t *testing.T) {
		api := newAPI(t, "")
		rr := api.do(http.MethodPost, "/admin/accounts/alice/adjust", dto.AdjustAccountRequest{Points: 10, Description: "x"}, adminTokenHeader, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		api := newAPI(t, testToken)
		rr := api.do(http.MethodPost, "/admin/accounts/alice/adjust", dto.AdjustAccountRequest{Points: 10, Description: "x"}, adminTokenHeader, "nope")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("negative adjustment below zero", func(t *testing.T) {
		api := newAPI(t, testToken)
		api.fund("alice", 10)
		rr := api.do(http.MethodPost, "/admin/accounts/alice/adjust", dto.AdjustAccountRequest{Points: -20, Description: "fix"}, adminTokenHeader, testToken)
		assert.Equal(t, http.StatusPaymentRequired, rr.Code)
		assert.Equal(t, "negative_adjustment", decodeBody[dto.ErrorResponse](t, rr).Kind)
	})

	t.Run("cancel pending refunds creator", func(t *testing.T) {
		api := newAPI(t, testToken)
		api.fund("alice", 1000)
		rr := api.do(http.MethodPost, "/v1/wagers", dto.CreateWagerRequest{CreatorID: "alice", Points: 100, GameType: "chess"})
		offer := decodeBody[dto.WagerResponse](t, rr)

		rr = api.do(http.MethodPost, "/admin/wagers/"+offer.WagerID+"/cancel", dto.AdminCancelRequest{Reason: "abuse"}, adminTokenHeader, testToken)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		got := decodeBody[dto.WagerResponse](t, rr)
		assert.Equal(t, "CANCELLED", got.Status)
		require.NotNil(t, got.CancelReason)
		assert.Equal(t, "abuse", *got.CancelReason)

		rr = api.do(http.MethodGet, "/v1/accounts/alice", nil)
		assert.EqualValues(t, 1000, decodeBody[dto.AccountResponse](t, rr).AvailablePoints)
	})

	t.Run("resolve requires dispute", func(t *testing.T) {
		api := newAPI(t, testToken)
		api.fund("alice", 1000)
		rr := api.do(http.MethodPost, "/v1/wagers", dto.CreateWagerRequest{CreatorID: "alice", Points: 100, GameType: "chess"})
		offer := decodeBody[dto.WagerResponse](t, rr)

		rr = api.do(http.MethodPost, "/admin/wagers/"+offer.WagerID+"/resolve", dto.ResolveDisputeRequest{WinnerID: "alice"}, adminTokenHeader, testToken)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrInsufficientFunds, http.StatusPaymentRequired},
		{domain.ErrNotParticipant, http.StatusForbidden},
		{domain.ErrWagerNotFound, http.StatusNotFound},
		{domain.ErrAlreadySubmitted, http.StatusConflict},
		{&domain.StateError{Op: "x", WagerID: "w", Status: domain.StatusCompleted}, http.StatusConflict},
		{fmt.Errorf("%w: %w", domain.ErrWagerUnavailable, domain.ErrWagerNotFound), http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}
