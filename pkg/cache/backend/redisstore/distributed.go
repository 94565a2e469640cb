package redisstore

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/calvinalkan/cachecore/pkg/cache"
)

// unlockScript deletes the lock key only if its value still matches the
// token this Backend set, so one holder can never release a lock acquired
// by a later holder after its own lease already expired (the classic
// check-and-delete pattern for Redis-based advisory locks).
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// Publish broadcasts event on this Backend's shared channel.
func (b *Backend) Publish(ctx context.Context, event cache.Event) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(wireEvent{
		Kind: int(event.Kind), Key: event.Key, Tag: event.Tag, Pattern: event.Pattern,
	})
	if err != nil {
		return cache.NewSerializationError(err)
	}
	if err := b.client.Publish(ctx, b.channel(), data).Err(); err != nil {
		return classify("<publish>", err)
	}
	return nil
}

type wireEvent struct {
	Kind    int    `json:"kind"`
	Key     string `json:"key,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// Subscribe returns a channel of invalidation events published by any
// Backend sharing this one's prefix (including this process). The returned
// channel is closed once unsubscribe is called or ctx is done.
func (b *Backend) Subscribe(ctx context.Context) (<-chan cache.Event, func() error, error) {
	sub := b.client.Subscribe(ctx, b.channel())
	if _, err := sub.Receive(ctx); err != nil {
		return nil, nil, classify("<subscribe>", err)
	}

	out := make(chan cache.Event)
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			var msg *redis.Message
			select {
			case m, ok := <-msgs:
				if !ok {
					return
				}
				msg = m
			case <-ctx.Done():
				return
			}
			var w wireEvent
			if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(msg.Payload), &w); err != nil {
				continue
			}
			select {
			case out <- cache.Event{Kind: cache.EventKind(w.Kind), Key: w.Key, Tag: w.Tag, Pattern: w.Pattern}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close, nil
}

// AcquireLock attempts a best-effort advisory lock on key, via SET NX PX.
// acquired is false (err == nil) on ordinary contention.
func (b *Backend) AcquireLock(ctx context.Context, key string, ttl time.Duration) (func() error, bool, error) {
	token := lockToken()
	ok, err := b.client.SetNX(ctx, b.lockKey(key), token, ttl).Result()
	if err != nil {
		return nil, false, classify(key, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() error {
		err := b.client.Eval(context.Background(), unlockScript, []string{b.lockKey(key)}, token).Err()
		if err != nil && err != redis.Nil {
			return classify(key, err)
		}
		return nil
	}
	return unlock, true, nil
}
