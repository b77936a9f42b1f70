package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/wager-platform/pkg/contracts/events"
)

type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{r: r, channel: channel}
}

// Payload enviado ao notification-gateway; AccountIDs são os destinatários
type WSUpdate struct {
	WagerID    string            `json:"wagerId"`
	AccountIDs []string          `json:"accountIds"`
	Payload    events.WagerEvent `json:"payload"`
}

// Publish difunde o evento no canal configurado
func (b *RedisBroadcaster) Publish(ctx context.Context, e events.WagerEvent) error {
	msg, err := json.Marshal(WSUpdate{WagerID: e.WagerID, AccountIDs: e.Participants, Payload: e})
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, msg).Err()
}
