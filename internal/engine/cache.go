package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrCacheClosed is returned by Get after Close.
var ErrCacheClosed = errors.New("engine cache closed")

type cacheEntry struct {
	ready chan struct{}
	eng   Engine
	err   error
}

// Cache builds each engine at most once per key and hands the same instance
// to every caller. Callers that arrive while a key is being built wait for
// that build instead of starting another. Failed builds are forgotten so the
// next Get retries.
type Cache struct {
	factory Factory

	mu      sync.Mutex
	entries map[string]*cacheEntry
	closed  bool
}

var _ Provider = (*Cache)(nil)

func NewCache(factory Factory) *Cache {
	return &Cache{factory: factory, entries: make(map[string]*cacheEntry)}
}

// Get returns the engine for key, building it on first use. Keys are
// canonicalized with CanonicalModel first, so every spelling of one model
// file shares one engine. ctx only bounds the wait for a build started by
// another caller.
func (c *Cache) Get(ctx context.Context, key string) (Engine, error) {
	key, err := CanonicalModel(key)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{ready: make(chan struct{})}
		c.entries[key] = e
		c.mu.Unlock()
		c.build(key, e)
		return e.eng, e.err
	}
	c.mu.Unlock()

	select {
	case <-e.ready:
		return e.eng, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) build(key string, e *cacheEntry) {
	defer close(e.ready)
	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				e.eng, e.err = nil, fmt.Errorf("build %s: panic: %v", key, r)
			}
		}()
		e.eng, e.err = c.factory(key)
	}()
	if e.err != nil {
		log.Error().Err(e.err).Str("model", key).Msg("engine: build failed")
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	} else {
		log.Info().Str("model", key).Dur("took", time.Since(start)).Msg("engine: ready")
	}
}

// Len reports how many engines are built or being built.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close waits for in-flight builds and closes every engine.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	entries := c.entries
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()

	var errs []error
	for key, e := range entries {
		<-e.ready
		if e.eng == nil {
			continue
		}
		if err := e.eng.Close(); err != nil {
			errs = append(errs, err)
			log.Warn().Err(err).Str("model", key).Msg("engine: close failed")
		}
	}
	return errors.Join(errs...)
}
