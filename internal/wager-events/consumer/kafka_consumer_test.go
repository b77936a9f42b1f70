package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/wager-platform/pkg/contracts/events"
)

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

type fakeWriter struct {
	msgs  []kafka.Message
	err   error
	fails int // falha as primeiras N escritas
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	if w.fails > 0 {
		w.fails--
		return errors.New("broker down")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type fakeLog struct {
	seen  map[int64]bool
	fails int
	calls int
}

func (l *fakeLog) Append(_ context.Context, _ events.WagerEvent, _ int, offset int64) (bool, error) {
	l.calls++
	if l.fails > 0 {
		l.fails--
		return false, errors.New("connection reset")
	}
	if l.seen == nil {
		l.seen = map[int64]bool{}
	}
	if l.seen[offset] {
		return false, nil
	}
	l.seen[offset] = true
	return true, nil
}

type fakeCache struct{ set []string }

func (c *fakeCache) SetLast(_ context.Context, e events.WagerEvent, _ int64) (bool, error) {
	c.set = append(c.set, e.WagerID)
	return true, nil
}

type fakeBroadcaster struct {
	sent []events.WagerEvent
	err  error
}

func (b *fakeBroadcaster) Publish(_ context.Context, e events.WagerEvent) error {
	b.sent = append(b.sent, e)
	return b.err
}

func eventMsg(t *testing.T, offset int64, ev events.WagerEvent) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Topic: "wager_events", Offset: offset, Key: []byte(ev.WagerID), Value: b}
}

type harness struct {
	proc   *Processor
	reader *fakeReader
	dlq    *fakeWriter
	log    *fakeLog
	cache  *fakeCache
	bc     *fakeBroadcaster
	stages []string
}

func newHarness(t *testing.T, msgs ...kafka.Message) (*harness, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := &harness{
		reader: &fakeReader{msgs: msgs, cancel: cancel},
		dlq:    &fakeWriter{},
		log:    &fakeLog{},
		cache:  &fakeCache{},
		bc:     &fakeBroadcaster{},
	}
	h.proc = &Processor{
		Log:         zaptest.NewLogger(t),
		Reader:      h.reader,
		DLQ:         h.dlq,
		Repo:        h.log,
		Cache:       h.cache,
		Broadcaster: h.bc,
		OnError:     func(s string) { h.stages = append(h.stages, s) },
	}
	return h, ctx
}

var ts = time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

func TestRun_PersistsCachesBroadcastsAndCommits(t *testing.T) {
	ev := events.WagerEvent{Type: events.TypeWagerMatched, WagerID: "w1", Participants: []string{"alice", "bob"}, Ts: ts}
	h, ctx := newHarness(t, eventMsg(t, 7, ev))

	err := h.proc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []int64{7}, h.reader.committed)
	assert.Equal(t, []string{"w1"}, h.cache.set)
	require.Len(t, h.bc.sent, 1)
	assert.Equal(t, []string{"alice", "bob"}, h.bc.sent[0].Participants)
	assert.Empty(t, h.dlq.msgs)
}

func TestRun_DuplicateIsNotRebroadcast(t *testing.T) {
	ev := events.WagerEvent{Type: events.TypeWagerCreated, WagerID: "w1", Ts: ts}
	h, ctx := newHarness(t, eventMsg(t, 3, ev), eventMsg(t, 3, ev))

	_ = h.proc.Run(ctx)

	assert.Equal(t, []int64{3, 3}, h.reader.committed)
	assert.Len(t, h.bc.sent, 1)
}

func TestRun_UndecodableGoesToDLQ(t *testing.T) {
	bad := kafka.Message{Topic: "wager_events", Partition: 1, Offset: 9, Key: []byte("w9"), Value: []byte("{not json")}
	noType := eventMsg(t, 10, events.WagerEvent{WagerID: "w10", Ts: ts})
	h, ctx := newHarness(t, bad, noType)

	_ = h.proc.Run(ctx)

	require.Len(t, h.dlq.msgs, 2)
	assert.Equal(t, []byte("{not json"), h.dlq.msgs[0].Value)
	headers := map[string]string{}
	for _, hd := range h.dlq.msgs[0].Headers {
		headers[hd.Key] = string(hd.Value)
	}
	assert.Equal(t, "decode", headers["dlq_stage"])
	assert.Equal(t, "wager_events/1/9", headers["dlq_source"])
	assert.Equal(t, []int64{9, 10}, h.reader.committed, "dead-lettered messages are committed")
	assert.Zero(t, h.log.calls)
	assert.Equal(t, []string{"decode", "decode"}, h.stages)
}

func TestHandle_RetriesPersistBeforeDLQ(t *testing.T) {
	ev := events.WagerEvent{Type: events.TypeWagerCompleted, WagerID: "w1", WinnerID: "alice", Ts: ts}
	h, ctx := newHarness(t)
	h.log.fails = 2

	require.NoError(t, h.proc.Handle(ctx, eventMsg(t, 1, ev)))
	assert.Equal(t, 3, h.log.calls)
	assert.Empty(t, h.dlq.msgs)
	assert.Len(t, h.bc.sent, 1)
}

func TestHandle_PersistExhaustedGoesToDLQ(t *testing.T) {
	ev := events.WagerEvent{Type: events.TypeWagerCompleted, WagerID: "w1", Ts: ts}
	h, ctx := newHarness(t)
	h.log.fails = persistAttempts

	require.NoError(t, h.proc.Handle(ctx, eventMsg(t, 1, ev)))
	require.Len(t, h.dlq.msgs, 1)
	assert.Empty(t, h.bc.sent)
	assert.Contains(t, h.stages, "db_append")
}

func TestRun_DLQFailureLeavesMessageUncommitted(t *testing.T) {
	bad := kafka.Message{Offset: 4, Value: []byte("nope")}
	good := eventMsg(t, 5, events.WagerEvent{Type: events.TypeWagerCreated, WagerID: "w5", Ts: ts})
	h, ctx := newHarness(t, bad, good)
	h.dlq.err = errors.New("broker down")
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	err := h.proc.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// a mensagem seguinte nem é lida: commitá-la levaria o offset 4 junto
	assert.Empty(t, h.reader.committed)
	assert.Len(t, h.reader.msgs, 1)
	assert.Zero(t, h.log.calls)
	assert.Contains(t, h.stages, "dlq")
}

func TestRun_DLQRecoveryCommitsInOrder(t *testing.T) {
	bad := kafka.Message{Offset: 4, Value: []byte("nope")}
	good := eventMsg(t, 5, events.WagerEvent{Type: events.TypeWagerCreated, WagerID: "w5", Ts: ts})
	h, ctx := newHarness(t, bad, good)
	h.dlq.fails = 2

	_ = h.proc.Run(ctx)

	require.Len(t, h.dlq.msgs, 1)
	assert.Equal(t, []byte("nope"), h.dlq.msgs[0].Value)
	assert.Equal(t, []int64{4, 5}, h.reader.committed)
	assert.Equal(t, []string{"decode", "dlq", "decode", "dlq", "decode"}, h.stages)
	assert.Len(t, h.bc.sent, 1)
}

func TestHandle_BroadcastFailureStillCommits(t *testing.T) {
	ev := events.WagerEvent{Type: events.TypeCodeShared, WagerID: "w1", Code: "ROOM", Ts: ts}
	h, ctx := newHarness(t, eventMsg(t, 5, ev))
	h.bc.err = errors.New("redis down")

	_ = h.proc.Run(ctx)

	assert.Equal(t, []int64{5}, h.reader.committed)
	assert.Contains(t, h.stages, "broadcast")
}
