package tier

import (
	"context"

	"github.com/calvinalkan/cachecore/pkg/cache"
)

// TaggableTier wraps a Tier whose L1 and L2 are both TaggableBackend,
// exposing tag operations that fan out to both. The manager only sees
// TaggableBackend if this constructor was used.
type TaggableTier struct {
	*Tier
	l1, l2 cache.TaggableBackend
}

// NewTaggable composes l1 and l2 as a Tier and additionally exposes
// TaggableBackend, for when both tiers support tags.
func NewTaggable(l1, l2 cache.TaggableBackend, cfg Config) *TaggableTier {
	return &TaggableTier{Tier: New(l1, l2, cfg), l1: l1, l2: l2}
}

var _ cache.TaggableBackend = (*TaggableTier)(nil)

// KeysByTag returns the union of keys registered under tag in either tier.
func (t *TaggableTier) KeysByTag(ctx context.Context, tag string) ([]string, error) {
	l1Keys, err := t.l1.KeysByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	if !t.brk.Allow() {
		return l1Keys, nil
	}
	l2Keys, err := t.l2.KeysByTag(ctx, tag)
	if err != nil {
		t.brk.RecordFailure()
		return l1Keys, nil
	}
	t.brk.RecordSuccess()

	seen := make(map[string]struct{}, len(l1Keys))
	out := make([]string, 0, len(l1Keys)+len(l2Keys))
	for _, k := range l1Keys {
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, k := range l2Keys {
		if _, ok := seen[k]; !ok {
			out = append(out, k)
		}
	}
	return out, nil
}

// InvalidateByTag removes tag's members from both tiers.
func (t *TaggableTier) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	n, err := t.l1.InvalidateByTag(ctx, tag)
	if err != nil {
		return 0, err
	}
	if t.brk.Allow() {
		if _, err := t.l2.InvalidateByTag(ctx, tag); err != nil {
			t.brk.RecordFailure()
		} else {
			t.brk.RecordSuccess()
		}
	}
	return n, nil
}

// InvalidateByPattern removes tag-matching members from both tiers.
func (t *TaggableTier) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	n, err := t.l1.InvalidateByPattern(ctx, pattern)
	if err != nil {
		return 0, err
	}
	if t.brk.Allow() {
		if _, err := t.l2.InvalidateByPattern(ctx, pattern); err != nil {
			t.brk.RecordFailure()
		} else {
			t.brk.RecordSuccess()
		}
	}
	return n, nil
}

// RegisterTags registers key's tags in both tiers.
func (t *TaggableTier) RegisterTags(ctx context.Context, key string, tags []string) error {
	if err := t.l1.RegisterTags(ctx, key, tags); err != nil {
		return err
	}
	if !t.brk.Allow() {
		return nil
	}
	if err := t.l2.RegisterTags(ctx, key, tags); err != nil {
		t.brk.RecordFailure()
		return err
	}
	t.brk.RecordSuccess()
	return nil
}

// UnregisterTags removes key from every tag in both tiers.
func (t *TaggableTier) UnregisterTags(ctx context.Context, key string) error {
	if err := t.l1.UnregisterTags(ctx, key); err != nil {
		return err
	}
	if !t.brk.Allow() {
		return nil
	}
	if err := t.l2.UnregisterTags(ctx, key); err != nil {
		t.brk.RecordFailure()
		return err
	}
	t.brk.RecordSuccess()
	return nil
}
