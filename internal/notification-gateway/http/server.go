package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/wager-platform/internal/notification-gateway/ws"
	"github.com/radieske/wager-platform/pkg/contracts/events"
)

// LastEventReader é o cache do último evento por aposta (wager-events/cache.RedisCache)
type LastEventReader interface {
	GetLast(ctx context.Context, wagerID string) (*events.WagerEvent, bool, error)
}

// API expõe o websocket e a consulta do último evento de uma aposta
type API struct {
	Hub   *ws.Hub
	Cache LastEventReader
	Log   *zap.Logger
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", a.Hub.HandleWS) // subscribe por conta
	r.Get("/v1/wagers/{id}/last-event", a.getLastEvent)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) getLastEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ev, ok, err := a.Cache.GetLast(r.Context(), id)
	if err != nil {
		a.Log.Warn("last event lookup failed", zap.String("wager_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache unavailable"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}
