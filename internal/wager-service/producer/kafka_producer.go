package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/wager-platform/pkg/contracts/events"
)

// messageWriter é o subconjunto de *kafka.Writer usado aqui
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher é o NotificationSink do motor: um evento por mensagem, chave = wager id.
type KafkaPublisher struct {
	Writer messageWriter
	Topic  string
}

func NewKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topic: topic}
}

// Notify implementa engine.Notifier
func (p *KafkaPublisher) Notify(ctx context.Context, e events.WagerEvent) error {
	if e.Ts.IsZero() {
		e.Ts = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(e.WagerID),
		Value: b,
		Time:  e.Ts,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", e.Type, p.Topic, err)
	}
	return nil
}
