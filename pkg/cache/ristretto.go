package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	gocache "github.com/eko/gocache/v3/cache"
	"github.com/eko/gocache/v3/store"
)

var ErrNotFound = errors.New("key not found")

// ICache is a context-aware cache with per item expiration.
type ICache[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, expiration time.Duration) error
}

type InMemoryCache[T any] struct {
	ristretto *ristretto.Cache
	cache     *gocache.Cache[T]
}

// Set stores the value and waits for ristretto to apply the write,
// so the value is visible to the next Get.
func (c *InMemoryCache[T]) Set(ctx context.Context, key string, value T, expiration time.Duration) error {
	if err := c.cache.Set(ctx, key, value, store.WithCost(1), store.WithExpiration(expiration)); err != nil {
		return err
	}
	c.ristretto.Wait()
	return nil
}

func (c *InMemoryCache[T]) Get(ctx context.Context, key string) (T, error) {
	value, err := c.cache.Get(ctx, key)
	if err != nil {
		var resultObject T
		if strings.Contains(err.Error(), "value not found") {
			return resultObject, ErrNotFound
		}
		return resultObject, err
	}
	return value, nil
}

func NewInMemoryCache[T any](maxItems int64) (*InMemoryCache[T], error) {
	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * maxItems,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	ristrettoStore := store.NewRistretto(ristrettoCache)
	return &InMemoryCache[T]{
		ristretto: ristrettoCache,
		cache:     gocache.New[T](ristrettoStore),
	}, nil
}
