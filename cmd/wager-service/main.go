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

	"github.com/radieske/wager-platform/internal/shared/config"
	"github.com/radieske/wager-platform/internal/shared/db"
	"github.com/radieske/wager-platform/internal/shared/kafka"
	"github.com/radieske/wager-platform/internal/shared/logger"
	"github.com/radieske/wager-platform/internal/shared/metrics"
	"github.com/radieske/wager-platform/internal/wager-service/engine"
	whttp "github.com/radieske/wager-platform/internal/wager-service/http"
	"github.com/radieske/wager-platform/internal/wager-service/jobs"
	"github.com/radieske/wager-platform/internal/wager-service/matching"
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

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))

	// Kafka writer (topic wager_events); sem brokers os eventos são descartados
	var notifier engine.Notifier = engine.NopNotifier{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		writer := kafka.NewWriter(brokers, cfg.TopicWagerEvents)
		defer writer.Close()
		notifier = kpub.NewKafkaPublisher(writer, cfg.TopicWagerEvents)
		log.Info("kafka writer ready", zap.String("topic", cfg.TopicWagerEvents))
	} else {
		log.Warn("KAFKA_BROKERS empty, lifecycle events will not be published")
	}

	eng := engine.New(store, notifier, log, metrics.NewWager(prometheus.DefaultRegisterer), engine.Options{
		MinStake:  cfg.MinStake,
		TTL:       cfg.WagerTTL,
		ScanLimit: matching.DefaultScanLimit,
	})

	// store em memória não é visível ao wager-expiry-worker: expira aqui mesmo
	if cfg.StoreDriver == "memory" {
		sched := jobs.NewExpiryScheduler(eng, log)
		if err := sched.Start(ctx, cfg.ExpirySchedule); err != nil {
			log.Fatal("expiry scheduler", zap.Error(err))
		}
		defer sched.Stop()
	}

	// HTTP público
	api := whttp.NewServer(log, eng, cfg.AdminToken)
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN empty, /admin routes disabled")
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, eng.Ping, log)

	go func() {
		log.Info("wager-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("api shutdown", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("wager-service stopped")
}

// openStore escolhe o backend pelo STORE_DRIVER; o Postgres recebe o schema na subida
func openStore(ctx context.Context, cfg config.Config) (repo.Store, func(), error) {
	if cfg.StoreDriver == "memory" {
		return repo.NewMemory(), func() {}, nil
	}

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	store := repo.NewPostgres(pg)
	if err := store.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return store, func() { pg.Close() }, nil
}
