package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/wager-platform/internal/shared/config"
	"github.com/radieske/wager-platform/internal/shared/db"
	"github.com/radieske/wager-platform/internal/shared/kafka"
	"github.com/radieske/wager-platform/internal/shared/logger"
	"github.com/radieske/wager-platform/internal/shared/metrics"
	"github.com/radieske/wager-platform/internal/wager-service/engine"
	"github.com/radieske/wager-platform/internal/wager-service/jobs"
	kpub "github.com/radieske/wager-platform/internal/wager-service/producer"
	"github.com/radieske/wager-platform/internal/wager-service/repo"
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

	if cfg.StoreDriver != "postgres" {
		log.Fatal("wager-expiry-worker requires STORE_DRIVER=postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	store := repo.NewPostgres(pg)

	// expirar também notifica os participantes
	var notifier engine.Notifier = engine.NopNotifier{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		writer := kafka.NewWriter(brokers, cfg.TopicWagerEvents)
		defer writer.Close()
		notifier = kpub.NewKafkaPublisher(writer, cfg.TopicWagerEvents)
	}

	eng := engine.New(store, notifier, log, metrics.NewWager(prometheus.DefaultRegisterer), engine.Options{
		MinStake: cfg.MinStake,
		TTL:      cfg.WagerTTL,
	})

	sched := jobs.NewExpiryScheduler(eng, log)
	if err := sched.Start(ctx, cfg.ExpirySchedule); err != nil {
		log.Fatal("expiry scheduler", zap.Error(err))
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, eng.Ping, log)

	log.Info("wager-expiry-worker started")
	<-ctx.Done()

	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("wager-expiry-worker stopped")
}
