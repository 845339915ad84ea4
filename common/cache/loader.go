package cache

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Loader reads JSON-encoded values of type T through a Cache and coalesces
// concurrent misses for the same key into a single load.
// Cache failures are logged and fall through to load.
type Loader[T any] struct {
	cache Cache
	group singleflight.Group
}

func NewLoader[T any](c Cache) *Loader[T] {
	return &Loader[T]{cache: c}
}

func (l *Loader[T]) Get(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := l.cached(ctx, key); ok {
		return v, nil
	}

	v, err, shared := l.group.Do(key, func() (any, error) {
		val, err := load(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(val)
		if err != nil {
			slog.WarnContext(ctx, "cache encode failed", "key", key, "error", err)
			return val, nil
		}
		if err := l.cache.Set(ctx, key, data); err != nil {
			slog.WarnContext(ctx, "cache write failed", "key", key, "error", err)
		}
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if shared {
		slog.DebugContext(ctx, "cache load shared", "key", key)
	}
	return v.(T), nil
}

func (l *Loader[T]) Invalidate(ctx context.Context, key string) error {
	l.group.Forget(key)
	return l.cache.Delete(ctx, key)
}

func (l *Loader[T]) cached(ctx context.Context, key string) (T, bool) {
	var v T
	data, ok, err := l.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		return v, false
	}
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		slog.WarnContext(ctx, "cache decode failed", "key", key, "error", err)
		return v, false
	}
	return v, true
}
