// ABOUTME: BadgerDB-backed cache for WHOIS responses with TTL expiry
// ABOUTME: Avoids hammering registries for repeatedly queried targets

package whois

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const cacheKeyPrefix = "whois:"

// CacheConfig configures the WHOIS response cache.
type CacheConfig struct {
	// Path is the on-disk location of the cache database.
	Path string

	// TTL is how long responses stay valid. Zero disables expiry.
	TTL time.Duration

	// InMemory runs the cache without disk persistence (tests).
	InMemory bool
}

// Cache stores WHOIS responses keyed by target.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewCache opens the cache database.
func NewCache(cfg CacheConfig) (*Cache, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening whois cache: %w", err)
	}

	return &Cache{db: db, ttl: cfg.TTL}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Put stores a response under its target.
func (c *Cache) Put(ctx context.Context, target string, data *Data) error {
	if data == nil {
		return errors.New("data is nil")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling whois data: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(cacheKeyPrefix+target), payload)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get retrieves a cached response.
// Returns (data, true, nil) on a hit and (nil, false, nil) on a miss.
func (c *Cache) Get(ctx context.Context, target string) (*Data, bool, error) {
	var data *Data

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKeyPrefix + target))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading cache entry: %w", err)
		}

		return item.Value(func(val []byte) error {
			var d Data
			if err := json.Unmarshal(val, &d); err != nil {
				return fmt.Errorf("unmarshaling whois data: %w", err)
			}
			data = &d
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}

	return data, data != nil, nil
}
