package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	ghttp "github.com/radieske/wager-platform/internal/notification-gateway/http"
	"github.com/radieske/wager-platform/internal/notification-gateway/ws"
	"github.com/radieske/wager-platform/internal/shared/cache"
	"github.com/radieske/wager-platform/internal/shared/config"
	"github.com/radieske/wager-platform/internal/shared/logger"
	"github.com/radieske/wager-platform/internal/shared/metrics"
	ecache "github.com/radieske/wager-platform/internal/wager-events/cache"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	m := metrics.NewGateway(prometheus.DefaultRegisterer)

	// em produção restrinja a origem
	hub := ws.NewHub(func(r *http.Request) bool { return true }, log)
	hub.OnConnect = m.Connections.Inc
	hub.OnDisconnect = m.Connections.Dec
	hub.OnDelivered = m.Delivered.Inc

	if err := ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log); err != nil {
		log.Fatal("redis subscribe", zap.String("channel", cfg.RedisPubSubChannel), zap.Error(err))
	}

	api := &ghttp.API{Hub: hub, Cache: ecache.NewRedisCache(redisClient, 0), Log: log}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}, log)

	go func() {
		log.Info("notification-gateway listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("notification-gateway stopped")
}
