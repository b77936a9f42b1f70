package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Expirer cancela ofertas PENDING vencidas (implementado por *engine.Engine)
type Expirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// ExpiryScheduler roda a varredura de expiração no cron configurado.
// Uma execução lenta não se sobrepõe à próxima.
type ExpiryScheduler struct {
	cron    *cron.Cron
	expirer Expirer
	log     *zap.Logger
	now     func() time.Time
}

func NewExpiryScheduler(expirer Expirer, log *zap.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		expirer: expirer,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start agenda a varredura; schedule aceita a sintaxe do cron ("@every 1m", "*/5 * * * *").
func (s *ExpiryScheduler) Start(ctx context.Context, schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.log.Info("expiry scheduler started", zap.String("schedule", schedule))
	return nil
}

// RunOnce executa uma varredura e devolve quantas apostas expiraram
func (s *ExpiryScheduler) RunOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	start := time.Now()
	n, err := s.expirer.ExpireStale(ctx, s.now())
	if err != nil {
		s.log.Error("expiry sweep failed", zap.Int("expired", n), zap.Error(err))
		return n
	}
	if n > 0 {
		s.log.Info("expired stale wagers", zap.Int("expired", n), zap.Duration("took", time.Since(start)))
	} else {
		s.log.Debug("expiry sweep: nothing to do")
	}
	return n
}

// Stop espera a execução em andamento terminar
func (s *ExpiryScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("expiry scheduler stopped")
}
