// Package pagecache fronts a content Fetcher with a TTL key-value store and
// keeps a per-resource access counter next to every cached entry.
//
// Content lives under the raw resource id; the counter lives under
// CountKey(id). A call always increments the counter exactly once, whether
// it was served from the store, fetched, or failed to fetch.
package pagecache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leonardcser/page-cache/internal/cache"
	"github.com/leonardcser/page-cache/internal/logger"
)

// DefaultTTL is the lifetime of a cached entry when none is configured.
const DefaultTTL = 10 * time.Second

// CountPrefix is prepended to a resource id to form its counter key.
const CountPrefix = "count:"

// Store is the subset of cache.KV the Resource Cache relies on. Misses are
// reported with cache.ErrNotFound or cache.ErrExpired; any other error is
// treated as the store being unavailable.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte, ttl time.Duration) error
	Incr(key string) (int64, error)
	Exists(key string) (bool, error)
}

// Fetcher retrieves the content of a resource.
type Fetcher interface {
	Fetch(ctx context.Context, resourceID string) ([]byte, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, resourceID string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, resourceID string) ([]byte, error) {
	return f(ctx, resourceID)
}

// State is the observed freshness of a resource's cache entry.
type State string

const (
	StateAbsent State = "absent"
	StateFresh  State = "fresh"
	StateStale  State = "stale"
)

// Cache is the Resource Cache. It holds no entry data itself, so a single
// instance may be shared by any number of goroutines.
type Cache struct {
	store   Store
	fetcher Fetcher
	ttl     time.Duration
}

type Option func(*Cache)

// WithTTL sets the lifetime used by Fetch.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func New(store Store, fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{store: store, fetcher: fetcher, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the lifetime used by Fetch.
func (c *Cache) TTL() time.Duration { return c.ttl }

// CountKey returns the store key of the access counter for resourceID.
func CountKey(resourceID string) string { return CountPrefix + resourceID }

// Fetch is FetchCached with the configured TTL. It lets a Cache stand in for
// the Fetcher it wraps.
func (c *Cache) Fetch(ctx context.Context, resourceID string) ([]byte, error) {
	return c.FetchCached(ctx, resourceID, c.ttl)
}

// FetchCached returns the content of resourceID, serving it from the store
// while it is fresh and fetching and storing it for ttl otherwise.
//
// A failed store write after a successful fetch is logged and the content
// is still returned; the entry simply stays cold until the next call.
func (c *Cache) FetchCached(ctx context.Context, resourceID string, ttl time.Duration) ([]byte, error) {
	if err := validate(resourceID); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive, got %s", ErrInvalidResource, ttl)
	}

	content, err := c.store.Get(resourceID)
	switch {
	case err == nil:
		logger.Debugf("cache hit for %s", resourceID)
		if err := c.touch(resourceID); err != nil {
			return nil, err
		}
		return content, nil
	case !cache.IsMiss(err):
		return nil, &StoreError{Op: OpRead, Key: resourceID, Cause: err}
	}

	logger.Debugf("cache miss for %s", resourceID)
	content, err = c.fetcher.Fetch(ctx, resourceID)
	if err != nil {
		// The attempt is counted even though nothing is cached.
		if incErr := c.touch(resourceID); incErr != nil {
			logger.Warnf("counting failed fetch of %s: %v", resourceID, incErr)
		}
		return nil, &FetchError{ResourceID: resourceID, Cause: err}
	}

	if err := c.store.Put(resourceID, content, ttl); err != nil {
		logger.Warnf("entry stays cold: %v", &StoreError{Op: OpWrite, Key: resourceID, Cause: err})
	}
	if err := c.touch(resourceID); err != nil {
		return nil, err
	}
	return content, nil
}

// AccessCount returns how many times resourceID has been requested, or 0
// when it never was.
func (c *Cache) AccessCount(resourceID string) (int64, error) {
	if err := validate(resourceID); err != nil {
		return 0, err
	}
	key := CountKey(resourceID)
	raw, err := c.store.Get(key)
	if err != nil {
		if cache.IsMiss(err) {
			return 0, nil
		}
		return 0, &StoreError{Op: OpRead, Key: key, Cause: err}
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, &StoreError{Op: OpRead, Key: key, Cause: cache.ErrNotInteger}
	}
	return n, nil
}

// State reports whether resourceID is currently absent, fresh or stale.
// It has no side effects.
func (c *Cache) State(resourceID string) (State, error) {
	if err := validate(resourceID); err != nil {
		return "", err
	}
	ok, err := c.store.Exists(resourceID)
	if err != nil {
		return "", &StoreError{Op: OpRead, Key: resourceID, Cause: err}
	}
	if ok {
		return StateFresh, nil
	}
	_, err = c.store.Get(resourceID)
	switch {
	case err == nil:
		// written between the two reads
		return StateFresh, nil
	case errors.Is(err, cache.ErrExpired):
		return StateStale, nil
	case cache.IsMiss(err):
		return StateAbsent, nil
	default:
		return "", &StoreError{Op: OpRead, Key: resourceID, Cause: err}
	}
}

func (c *Cache) touch(resourceID string) error {
	key := CountKey(resourceID)
	if _, err := c.store.Incr(key); err != nil {
		return &StoreError{Op: OpIncrement, Key: key, Cause: err}
	}
	return nil
}

func validate(resourceID string) error {
	if strings.TrimSpace(resourceID) == "" {
		return fmt.Errorf("%w: empty resource id", ErrInvalidResource)
	}
	// Counters share the store's namespace.
	if strings.HasPrefix(resourceID, CountPrefix) {
		return fmt.Errorf("%w: resource id must not start with %q", ErrInvalidResource, CountPrefix)
	}
	return nil
}
