package cache

import (
	"errors"
	"time"
)

// KV defines the key-value contract with TTL semantics and atomic counters.
// Implementations must be safe for concurrent use by multiple goroutines.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	// Incr atomically adds one to the integer stored at key, creating it at 0
	// first when absent or expired, and returns the new value.
	Incr(key string) (int64, error)
	// Exists reports whether key is present and unexpired.
	Exists(key string) (bool, error)
}

var (
	ErrNotFound   = errors.New("cache: not found")
	ErrExpired    = errors.New("cache: expired")
	ErrNotInteger = errors.New("cache: value is not an integer")
)

// IsMiss reports whether err means the key holds no usable value.
func IsMiss(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired)
}
