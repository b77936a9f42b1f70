package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/wager-platform/internal/wager-service/domain"
	"github.com/radieske/wager-platform/internal/wager-service/ledger"
	"github.com/radieske/wager-platform/internal/wager-service/matching"
	"github.com/radieske/wager-platform/internal/wager-service/repo"
	"github.com/radieske/wager-platform/internal/wager-service/resolution"
	"github.com/radieske/wager-platform/pkg/contracts/events"
)

// Notifier recebe os eventos do ciclo de vida depois do commit.
// Falhas são logadas e nunca desfazem a operação.
type Notifier interface {
	Notify(ctx context.Context, e events.WagerEvent) error
}

// NopNotifier descarta eventos (testes e modo sem Kafka).
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, events.WagerEvent) error { return nil }

// Observer expõe contadores de operação (implementado por shared/metrics).
type Observer interface {
	Transition(from, to string)
	Failed(op, kind string)
	LedgerPoints(entryType string, points int64)
	Published(eventType string, err error)
}

type nopObserver struct{}

func (nopObserver) Transition(string, string)  {}
func (nopObserver) Failed(string, string)      {}
func (nopObserver) LedgerPoints(string, int64) {}
func (nopObserver) Published(string, error)    {}

// Options parametriza regras de negócio do motor.
type Options struct {
	MinStake  int64
	TTL       time.Duration
	ScanLimit int
	Now       func() time.Time
	NewID     func() string
}

const (
	defaultMinStake = 10
	defaultTTL      = 24 * time.Hour
	notifyTimeout   = 5 * time.Second
)

func DefaultOptions() Options {
	return Options{MinStake: defaultMinStake, TTL: defaultTTL, ScanLimit: matching.DefaultScanLimit}
}

// Engine é a máquina de estados das apostas. Cada operação é uma única transação
// do Store; eventos só saem depois do commit.
type Engine struct {
	store    repo.Store
	ledger   *ledger.Ledger
	matcher  *matching.Matcher
	resolver *resolution.Resolver
	notifier Notifier
	obs      Observer
	log      *zap.Logger
	opts     Options
}

func New(store repo.Store, notifier Notifier, log *zap.Logger, obs Observer, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.MinStake <= 0 {
		opts.MinStake = defaultMinStake
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if obs == nil {
		obs = nopObserver{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := ledger.New().WithClock(opts.Now)
	return &Engine{
		store:    store,
		ledger:   l,
		matcher:  matching.New(opts.ScanLimit),
		resolver: resolution.New(l),
		notifier: notifier,
		obs:      obs,
		log:      log,
		opts:     opts,
	}
}

// run executa fn numa transação. O recorder é recriado a cada tentativa porque
// o Store pode repetir fn (serialização / deadlock no Postgres).
func (e *Engine) run(ctx context.Context, op string, fn func(tx repo.Tx, rec *recorder) error) error {
	var rec *recorder
	err := e.store.InTx(ctx, func(tx repo.Tx) error {
		rec = newRecorder(e.opts.Now())
		return fn(tx, rec)
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleWager) && !errors.Is(err, domain.ErrInvalidWagerState) {
			err = fmt.Errorf("%w: %w", domain.ErrInvalidWagerState, err)
		}
		return e.fail(op, err)
	}
	e.flush(ctx, rec)
	return nil
}

func (e *Engine) fail(op string, err error) error {
	kind := domain.Kind(err)
	e.obs.Failed(op, kind)
	if kind == "internal" {
		e.log.Error("wager operation failed", zap.String("op", op), zap.Error(err))
	} else {
		e.log.Debug("wager operation rejected", zap.String("op", op), zap.String("kind", kind), zap.Error(err))
	}
	return err
}

// flush loga as transições e publica os eventos já commitados
func (e *Engine) flush(ctx context.Context, rec *recorder) {
	for _, t := range rec.transitions {
		e.log.Info("wager transition",
			zap.String("wager_id", t.wagerID),
			zap.String("from", string(t.from)),
			zap.String("to", string(t.to)),
		)
		e.obs.Transition(string(t.from), string(t.to))
	}
	for typ, pts := range rec.ledger {
		e.obs.LedgerPoints(string(typ), pts)
	}
	if len(rec.events) == 0 {
		return
	}

	// a requisição pode ter sido cancelada depois do commit; o evento ainda sai
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	for _, ev := range rec.events {
		if ev.Ts.IsZero() {
			ev.Ts = rec.at
		}
		err := e.notifier.Notify(nctx, ev)
		e.obs.Published(ev.Type, err)
		if err != nil {
			e.log.Warn("notify failed",
				zap.String("type", ev.Type),
				zap.String("wager_id", ev.WagerID),
				zap.Error(err),
			)
		}
	}
}

// Ping verifica o store (usado no /healthz)
func (e *Engine) Ping(ctx context.Context) error { return e.store.Ping(ctx) }
