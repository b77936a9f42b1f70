package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/wager-platform/internal/shared/config"
	"github.com/radieske/wager-platform/internal/shared/logger"
	"github.com/radieske/wager-platform/internal/shared/metrics"
)

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", to)
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

// newRouter monta o roteamento de borda:
// /api/*    -> wager-service (REST de contas, apostas e admin)
// /notify/* -> notification-gateway (websocket e último evento)
func newRouter(wagerURL, notifyURL string) (http.Handler, error) {
	wager, err := rp(wagerURL)
	if err != nil {
		return nil, err
	}
	notify, err := rp(notifyURL)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", wager))
	mux.Handle("/notify/", http.StripPrefix("/notify", notify))
	return withCORS(mux), nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// targets
	wagerURL := os.Getenv("WAGER_URL")
	if wagerURL == "" {
		wagerURL = "http://localhost:8083"
	}
	notifyURL := os.Getenv("NOTIFY_URL")
	if notifyURL == "" {
		notifyURL = "http://localhost:8080"
	}
	handler, err := newRouter(wagerURL, notifyURL)
	if err != nil {
		log.Fatal("routes", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, log)

	go func() {
		log.Info("api-gateway listening", zap.String("addr", srv.Addr),
			zap.String("wager", wagerURL), zap.String("notify", notifyURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("gateway failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
