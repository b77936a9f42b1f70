package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/wager-platform/pkg/contracts/events"
)

// RedisCache guarda o último evento de cada aposta (lido pelo notification-gateway)
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

const defaultTTL = 24 * time.Hour

func key(wagerID string) string    { return "wager:last_event:" + wagerID }
func tsKey(wagerID string) string  { return "wager:last_event_ts:" + wagerID }
func seqKey(wagerID string) string { return "wager:last_event_seq:" + wagerID }

// setIfNewer grava o evento só se (ts, offset) for maior que o gravado.
// Eventos da mesma transação têm o mesmo ts; o offset desempata, já que a chave
// da mensagem é o id da aposta e todos caem na mesma partição.
var setIfNewer = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[2]) or '-1')
local ts = tonumber(ARGV[2])
if cur > ts then
  return 0
end
if cur == ts then
  local seq = tonumber(redis.call('GET', KEYS[3]) or '-1')
  if seq >= tonumber(ARGV[4]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
redis.call('SET', KEYS[3], ARGV[4], 'PX', ARGV[3])
return 1
`)

// SetLast grava o evento lido no offset informado como último da aposta;
// devolve false se já havia um mais novo (ou a mesma mensagem).
func (r *RedisCache) SetLast(ctx context.Context, e events.WagerEvent, offset int64) (bool, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	keys := []string{key(e.WagerID), tsKey(e.WagerID), seqKey(e.WagerID)}
	n, err := setIfNewer.Run(ctx, r.Client, keys, b, e.Ts.UnixMilli(), ttl.Milliseconds(), offset).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetLast devolve o último evento da aposta; ok=false se não houver.
func (r *RedisCache) GetLast(ctx context.Context, wagerID string) (*events.WagerEvent, bool, error) {
	b, err := r.Client.Get(ctx, key(wagerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e events.WagerEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, false, err
	}
	return &e, true, nil
}
