package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/wager-platform/internal/shared/cache"
	"github.com/radieske/wager-platform/internal/shared/config"
	"github.com/radieske/wager-platform/internal/shared/db"
	"github.com/radieske/wager-platform/internal/shared/kafka"
	"github.com/radieske/wager-platform/internal/shared/logger"
	"github.com/radieske/wager-platform/internal/shared/metrics"
	ecache "github.com/radieske/wager-platform/internal/wager-events/cache"
	"github.com/radieske/wager-platform/internal/wager-events/consumer"
	"github.com/radieske/wager-platform/internal/wager-events/pubsub"
	"github.com/radieske/wager-platform/internal/wager-events/repository"
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

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	eventLog := repository.NewPostgresRepo(pg)
	if err := eventLog.Migrate(ctx); err != nil {
		log.Fatal("event log schema", zap.Error(err))
	}

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}
	reader := kafka.NewReader(brokers, cfg.TopicWagerEvents, cfg.ConsumerGroup)
	defer reader.Close()
	dlq := kafka.NewWriter(brokers, cfg.TopicWagerEventsDLQ)
	defer dlq.Close()

	m := metrics.NewEventsWorker(prometheus.DefaultRegisterer)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		DLQ:         dlq,
		Repo:        eventLog,
		Cache:       ecache.NewRedisCache(redisClient, cfg.WagerTTL*2),
		Broadcaster: pubsub.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel),
		OnConsumed:  func() { m.Consumed.Inc() },
		OnCached:    func() { m.Cached.Inc() },
		OnPersist:   func() { m.Persist.Inc() },
		OnDLQ:       func() { m.DLQ.Inc() },
		OnError:     func(stage string) { m.ErrorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}, log)

	log.Info("wager-events-worker started",
		zap.String("topic", cfg.TopicWagerEvents),
		zap.String("dlq", cfg.TopicWagerEventsDLQ),
		zap.String("group", cfg.ConsumerGroup),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("wager-events-worker stopped")
}
