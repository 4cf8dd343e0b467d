package cache

import (
	"encoding/binary"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	bolt "go.etcd.io/bbolt"
)

// Store provides a persistent KV cache with TTL semantics.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	db         *bolt.DB
	bucket     []byte
	defaultTTL time.Duration
	clock      clockwork.Clock
	mu         sync.RWMutex
}

type Options struct {
	// Bucket is the name of the Bolt bucket to use.
	Bucket string
	// DefaultTTL is used when Put is called with ttl <= 0.
	DefaultTTL time.Duration
	// Clock drives expiry decisions. Defaults to the wall clock.
	Clock clockwork.Clock
}

// headerSize is the length of the expiry prefix stored before every value.
const headerSize = 8

// Open initializes or opens a Store at the given path.
func Open(path string, opts Options) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	bucket := []byte("cache")
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{db: db, bucket: bucket, defaultTTL: opts.DefaultTTL, clock: clock}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores value with an absolute expiration computed as now+ttl.
// If ttl <= 0, DefaultTTL is used; if DefaultTTL <= 0, the item never expires.
func (s *Store) Put(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.clock.Now().Add(ttl).UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), encode(expiresAt, value))
	})
}

// Get returns cached value if present and not expired.
func (s *Store) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []byte
	var expired bool
	var exists bool
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		exists = true
		if s.expired(v) {
			expired = true
			return nil
		}
		out = append([]byte(nil), v[headerSize:]...)
		return nil
	}); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	if expired {
		return nil, ErrExpired
	}
	return out, nil
}

// Exists reports whether key holds an unexpired value.
func (s *Store) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		ok = v != nil && !s.expired(v)
		return nil
	})
	return ok, err
}

// Incr increments the decimal counter stored at key inside a single update
// transaction. An unexpired TTL on the key is kept; an expired key restarts at 0.
func (s *Store) Incr(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var expiresAt int64
		if v := b.Get([]byte(key)); v != nil && !s.expired(v) {
			cur, err := strconv.ParseInt(string(v[headerSize:]), 10, 64)
			if err != nil {
				return ErrNotInteger
			}
			n = cur
			expiresAt = int64(binary.BigEndian.Uint64(v[:headerSize]))
		}
		n++
		return b.Put([]byte(key), encode(expiresAt, []byte(strconv.FormatInt(n, 10))))
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Delete removes a key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// Sweep removes every expired entry and returns how many were reclaimed.
func (s *Store) Sweep() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if s.expired(v) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// expired reports whether a stored record is strictly past its expiry.
func (s *Store) expired(v []byte) bool {
	if len(v) < headerSize {
		return true
	}
	expiresAt := int64(binary.BigEndian.Uint64(v[:headerSize]))
	return expiresAt > 0 && s.clock.Now().UnixMilli() > expiresAt
}

// Layout: 8 bytes big endian expiresAt (unix ms, 0 = never) || raw value
func encode(expiresAt int64, value []byte) []byte {
	buf := make([]byte, headerSize+len(value))
	binary.BigEndian.PutUint64(buf[:headerSize], uint64(expiresAt))
	copy(buf[headerSize:], value)
	return buf
}
