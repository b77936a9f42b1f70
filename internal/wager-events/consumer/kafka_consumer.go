package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/wager-platform/pkg/contracts/events"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// EventLog é o histórico persistente (repository.PostgresRepo)
type EventLog interface {
	Append(ctx context.Context, e events.WagerEvent, partition int, offset int64) (bool, error)
}

// LastEventCache é o cache do último evento por aposta (cache.RedisCache)
type LastEventCache interface {
	SetLast(ctx context.Context, e events.WagerEvent, offset int64) (bool, error)
}

// Broadcaster difunde o evento para o notification-gateway (pubsub.RedisBroadcaster)
type Broadcaster interface {
	Publish(ctx context.Context, e events.WagerEvent) error
}

const (
	persistAttempts = 3
	retryBackoff    = 200 * time.Millisecond
	broadcastWait   = 500 * time.Millisecond

	maxHandleBackoff = 5 * time.Second
)

// Processor consome wager_events: persiste no histórico, atualiza o cache e
// difunde via Redis. Mensagens ilegíveis ou que não persistem vão para a DLQ.
// O offset só é commitado depois que a mensagem foi tratada (at-least-once);
// se nem a DLQ aceita, a mesma mensagem é reprocessada e o loop não avança.
type Processor struct {
	Log         *zap.Logger
	Reader      messageReader
	DLQ         messageWriter
	Repo        EventLog
	Cache       LastEventCache
	Broadcaster Broadcaster

	OnConsumed func()       // métricas (counter++)
	OnCached   func()       // métricas
	OnPersist  func()       // métricas
	OnDLQ      func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo; retorna quando ctx é cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.failed("read")
			if !sleep(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		if err := p.handleUntilDone(ctx, m); err != nil {
			return err
		}
		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.failed("commit")
		}
	}
}

// Handle trata uma mensagem. Erro significa que nem a DLQ aceitou a mensagem.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	ev, err := decode(m.Value)
	if err != nil {
		p.Log.Warn("invalid message", zap.Int64("offset", m.Offset), zap.Error(err))
		p.failed("decode")
		return p.toDLQ(ctx, m, "decode", err)
	}

	inserted, err := p.persist(ctx, ev, m)
	if err != nil {
		p.Log.Warn("db append failed", zap.String("wager_id", ev.WagerID), zap.Error(err))
		p.failed("db_append")
		return p.toDLQ(ctx, m, "db_append", err)
	}
	if inserted && p.OnPersist != nil {
		p.OnPersist()
	}

	// cache e broadcast não bloqueiam o commit
	if ok, err := p.Cache.SetLast(ctx, ev, m.Offset); err != nil {
		p.Log.Warn("redis set failed", zap.String("wager_id", ev.WagerID), zap.Error(err))
		p.failed("cache")
	} else if ok && p.OnCached != nil {
		p.OnCached()
	}

	if !inserted {
		p.Log.Debug("duplicate delivery", zap.String("wager_id", ev.WagerID), zap.Int64("offset", m.Offset))
		return nil
	}
	bctx, cancel := context.WithTimeout(ctx, broadcastWait)
	defer cancel()
	if err := p.Broadcaster.Publish(bctx, ev); err != nil {
		p.Log.Warn("ws broadcast publish failed", zap.String("wager_id", ev.WagerID), zap.Error(err))
		p.failed("broadcast")
	}
	return nil
}

// handleUntilDone repete Handle até a mensagem ser tratada ou ctx terminar.
// O commit do Kafka é o offset da partição: avançar para a próxima mensagem
// commitaria também esta.
func (p *Processor) handleUntilDone(ctx context.Context, m kafka.Message) error {
	for attempt := 1; ; attempt++ {
		err := p.Handle(ctx, m)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.Log.Error("message not handled, retrying",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if !sleep(ctx, handleBackoff(attempt)) {
			return ctx.Err()
		}
	}
}

func handleBackoff(attempt int) time.Duration {
	d := retryBackoff * time.Duration(attempt)
	if d > maxHandleBackoff {
		return maxHandleBackoff
	}
	return d
}

func decode(b []byte) (events.WagerEvent, error) {
	var ev events.WagerEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return ev, err
	}
	if ev.Type == "" || ev.WagerID == "" {
		return ev, errors.New("missing type or wager_id")
	}
	if ev.Ts.IsZero() {
		return ev, errors.New("missing ts")
	}
	return ev, nil
}

func (p *Processor) persist(ctx context.Context, ev events.WagerEvent, m kafka.Message) (bool, error) {
	var err error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		var inserted bool
		inserted, err = p.Repo.Append(ctx, ev, m.Partition, m.Offset)
		if err == nil {
			return inserted, nil
		}
		if attempt < persistAttempts && !sleep(ctx, retryBackoff*time.Duration(attempt)) {
			return false, ctx.Err()
		}
	}
	return false, fmt.Errorf("after %d attempts: %w", persistAttempts, err)
}

// toDLQ copia a mensagem original com a fase e o erro nos headers
func (p *Processor) toDLQ(ctx context.Context, m kafka.Message, stage string, cause error) error {
	dlq := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: append(append([]kafka.Header{}, m.Headers...),
			kafka.Header{Key: "dlq_stage", Value: []byte(stage)},
			kafka.Header{Key: "dlq_error", Value: []byte(cause.Error())},
			kafka.Header{Key: "dlq_source", Value: []byte(fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset))},
		),
	}
	if err := p.DLQ.WriteMessages(ctx, dlq); err != nil {
		p.failed("dlq")
		return fmt.Errorf("write dlq: %w", err)
	}
	if p.OnDLQ != nil {
		p.OnDLQ()
	}
	return nil
}

func (p *Processor) failed(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
