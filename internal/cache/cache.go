// Package cache keeps API response bodies between runs. Reads go through an
// in-memory LRU first and fall back to an on-disk badger store; entries
// expire after a fixed TTL.
package cache

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Config configures a Cache.
type Config struct {
	// Dir holds the badger files. Ignored when InMemory is set.
	Dir string
	// InMemory keeps the store in memory, for tests.
	InMemory bool
	// TTL bounds the age of an entry. Zero means one day.
	TTL time.Duration
	// Entries is the LRU capacity. Zero means 4096.
	Entries int
	Logger  *zap.Logger
}

// Cache is a two-level response cache. It is safe for concurrent use.
type Cache struct {
	mem *lru.Cache[string, []byte]
	db  *badger.DB
	ttl time.Duration
	log *zap.Logger
}

// Open opens or creates the store.
func Open(cfg Config) (*Cache, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Entries <= 0 {
		cfg.Entries = 4096
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(badgerLogger{log: log.Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	mem, err := lru.New[string, []byte](cfg.Entries)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{mem: mem, db: db, ttl: cfg.TTL, log: log}, nil
}

// Get returns the body stored under key.
func (c *Cache) Get(key string) ([]byte, bool) {
	if v, ok := c.mem.Get(key); ok {
		return v, true
	}
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	c.mem.Add(key, out)
	return out, true
}

// Set stores value under key. Write failures are logged and otherwise
// ignored.
func (c *Cache) Set(key string, value []byte) {
	c.mem.Add(key, value)
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(c.ttl))
	})
	if err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Purge drops every entry.
func (c *Cache) Purge() error {
	c.mem.Purge()
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	return nil
}

// Close flushes and closes the store.
func (c *Cache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	return nil
}

// badgerLogger routes badger's own logging into zap at debug level, keeping
// warnings and errors visible.
type badgerLogger struct {
	log *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.log.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.log.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.log.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.log.Debugf(format, args...) }
