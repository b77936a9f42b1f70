package ws

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/wager-platform/internal/wager-events/pubsub"
	"github.com/radieske/wager-platform/pkg/contracts/events"
)

func TestRedisSubscriber_FansOutBroadcasts(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub, url := startHub(t)
	conn := dial(t, url)
	send(t, conn, ClientMsg{Type: "subscribe", AccountID: "bob"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, StartRedisSubscriber(ctx, rdb, "wager_events_broadcast", hub, zaptest.NewLogger(t)))

	pub := pubsub.NewRedisBroadcaster(rdb, "wager_events_broadcast")
	ev := events.WagerEvent{Type: events.TypeCodeShared, WagerID: "w1", Code: "ROOM-1", Participants: []string{"alice", "bob"}, Ts: time.Now().UTC()}
	require.NoError(t, pub.Publish(ctx, ev))

	got := read(t, conn)
	assert.Equal(t, "event", got.Type)
	require.NotNil(t, got.Event)
	assert.Equal(t, "ROOM-1", got.Event.Code)
}
