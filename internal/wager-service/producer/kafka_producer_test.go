package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-platform/pkg/contracts/events"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestNotify_KeyedByWagerID(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, "wager_events")
	ts := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	err := p.Notify(context.Background(), events.WagerEvent{
		Type:         events.TypeWagerCompleted,
		WagerID:      "w1",
		WinnerID:     "alice",
		Participants: []string{"alice", "bob"},
		Ts:           ts,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "w1", string(msg.Key))
	assert.Equal(t, ts, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, events.TypeWagerCompleted, string(msg.Headers[0].Value))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "WAGER_COMPLETED", got["type"])
	assert.Equal(t, "w1", got["wager_id"])
	assert.Equal(t, "alice", got["winner_id"])
	assert.NotContains(t, got, "code", "empty fields are omitted")
}

func TestNotify_StampsMissingTimestamp(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, "wager_events")

	require.NoError(t, p.Notify(context.Background(), events.WagerEvent{Type: events.TypeWagerCreated, WagerID: "w1"}))
	assert.False(t, w.msgs[0].Time.IsZero())
}

func TestNotify_WriterError(t *testing.T) {
	boom := errors.New("broker unavailable")
	p := NewKafkaPublisher(&fakeWriter{err: boom}, "wager_events")

	err := p.Notify(context.Background(), events.WagerEvent{Type: events.TypeWagerCreated, WagerID: "w1"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "wager_events")
}
