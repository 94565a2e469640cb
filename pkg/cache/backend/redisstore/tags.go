package redisstore

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/calvinalkan/cachecore/internal/globmatch"
	"github.com/calvinalkan/cachecore/pkg/cache"
)

// RegisterTags adds key to each tag's Redis set, and each tag to key's
// reverse-index set (key->tags), which UnregisterTags uses to remove key
// from every tag set when the key is deleted. Keys that expire via Redis's
// own TTL are dropped from a tag's set lazily, by KeysByTag.
func (b *Backend) RegisterTags(ctx context.Context, key string, tags []string) error {
	pipe := b.client.Pipeline()
	for _, tag := range tags {
		pipe.SAdd(ctx, b.tagKey(tag), key)
	}
	pipe.SAdd(ctx, b.keyTagsKey(key), toAny(tags)...)
	if _, err := pipe.Exec(ctx); err != nil {
		return classify(key, err)
	}
	return nil
}

// UnregisterTags removes key from every tag set it was registered under,
// then clears its reverse index.
func (b *Backend) UnregisterTags(ctx context.Context, key string) error {
	tags, err := b.client.SMembers(ctx, b.keyTagsKey(key)).Result()
	if err != nil {
		return classify(key, err)
	}
	if len(tags) == 0 {
		return nil
	}

	pipe := b.client.Pipeline()
	for _, tag := range tags {
		pipe.SRem(ctx, b.tagKey(tag), key)
	}
	pipe.Del(ctx, b.keyTagsKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return classify(key, err)
	}
	return nil
}

// KeysByTag returns tag's member keys, dropping any whose data entry has
// since expired (and removing those keys from tag's set as it goes).
func (b *Backend) KeysByTag(ctx context.Context, tag string) ([]string, error) {
	members, err := b.client.SMembers(ctx, b.tagKey(tag)).Result()
	if err != nil {
		return nil, classify(tag, err)
	}
	return b.filterLive(ctx, tag, members)
}

func (b *Backend) filterLive(ctx context.Context, tag string, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pipe := b.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.Exists(ctx, b.dataKey(k))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, classify(tag, err)
	}

	var live []string
	var dead []string
	for i, k := range keys {
		if cmds[i].Val() > 0 {
			live = append(live, k)
		} else {
			dead = append(dead, k)
		}
	}
	if len(dead) > 0 {
		pipe := b.client.Pipeline()
		for _, k := range dead {
			pipe.SRem(ctx, b.tagKey(tag), k)
		}
		_, _ = pipe.Exec(ctx)
	}
	return live, nil
}

// InvalidateByTag deletes every live entry registered under tag.
func (b *Backend) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	keys, err := b.KeysByTag(ctx, tag)
	if err != nil {
		return 0, err
	}
	n, err := b.DeleteMany(ctx, keys)
	if err != nil {
		return 0, err
	}
	_ = b.client.Del(ctx, b.tagKey(tag)).Err()
	return n, nil
}

// InvalidateByPattern deletes every live entry whose tag matches pattern.
// It scans the tag namespace (SCAN, not KEYS) so it never blocks Redis.
func (b *Backend) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	total := 0
	iter := b.client.Scan(ctx, 0, b.prefix+"t:*", 1000).Iterator()
	for iter.Next(ctx) {
		tag := iter.Val()[len(b.prefix+"t:"):]
		matched, err := globmatch.Match(pattern, tag)
		if err != nil {
			return total, err
		}
		if !matched {
			continue
		}
		n, err := b.InvalidateByTag(ctx, tag)
		if err != nil {
			return total, err
		}
		total += n
	}
	if err := iter.Err(); err != nil {
		return total, classify("<pattern>", err)
	}
	return total, nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
