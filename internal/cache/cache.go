// Package cache implements a stale-while-revalidate snapshot cache on top of
// a device-local store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/DuyAnh662/Fileshare/internal/localstore"
)

const backgroundRefreshTimeout = 30 * time.Second

// Fetcher loads the authoritative value from the remote store.
type Fetcher[T any] func(ctx context.Context) (T, error)

type entry[T any] struct {
	Timestamp time.Time `json:"timestamp"`
	Data      T         `json:"data"`
}

// Options tunes a Cache. Zero values fall back to the package defaults.
type Options struct {
	TTL        time.Duration
	StaleAfter time.Duration
	Now        func() time.Time

	// Refresher is shared by caches that should de-duplicate fetches and be
	// awaited together. Scope separates devices within one Refresher.
	Refresher *Refresher
	Scope     string
}

// Refresher tracks fetches across caches so concurrent requests from one
// device share a fetch and shutdown can wait for background refreshes.
type Refresher struct {
	group singleflight.Group
	wg    sync.WaitGroup

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the invalidation generation of one key while fetches for it are
// running. It is dropped once the last fetch ends.
type flight struct {
	mu       sync.Mutex
	gen      uint64
	inflight int // guarded by Refresher.mu
}

func NewRefresher() *Refresher {
	return &Refresher{flights: make(map[string]*flight)}
}

// Wait blocks until background refreshes started so far have finished.
func (r *Refresher) Wait() {
	r.wg.Wait()
}

func (r *Refresher) begin(key string) (*flight, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.flights == nil {
		r.flights = make(map[string]*flight)
	}
	f := r.flights[key]
	if f == nil {
		f = &flight{}
		r.flights[key] = f
	}
	f.inflight++

	f.mu.Lock()
	defer f.mu.Unlock()
	return f, f.gen
}

func (r *Refresher) end(key string, f *flight) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f.inflight--
	if f.inflight == 0 && r.flights[key] == f {
		delete(r.flights, key)
	}
}

// invalidate makes every fetch for key that is already running unable to
// store its result. Fetches started afterwards use a new flight.
func (r *Refresher) invalidate(key string) {
	r.mu.Lock()
	f := r.flights[key]
	r.mu.Unlock()

	if f == nil {
		return
	}
	f.mu.Lock()
	f.gen++
	f.mu.Unlock()
}

const (
	DefaultTTL        = time.Hour
	DefaultStaleAfter = 5 * time.Minute
)

// Cache keeps one snapshot under a fixed key. Within StaleAfter a read is served
// from the store; between StaleAfter and TTL it is served and refreshed in the
// background; past TTL the read blocks on a fetch.
type Cache[T any] struct {
	store      localstore.Store
	key        string
	flightKey  string
	ttl        time.Duration
	staleAfter time.Duration
	now        func() time.Time
	refresher  *Refresher

	// Valid, when set, rejects entries whose data is no longer usable
	// regardless of age.
	Valid func(data T, now time.Time) bool
}

func New[T any](store localstore.Store, key string, opts Options) *Cache[T] {
	c := &Cache[T]{
		store:      store,
		key:        key,
		ttl:        opts.TTL,
		staleAfter: opts.StaleAfter,
		now:        opts.Now,
		refresher:  opts.Refresher,
		flightKey:  opts.Scope + "/" + key,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.staleAfter <= 0 || c.staleAfter > c.ttl {
		c.staleAfter = min(DefaultStaleAfter, c.ttl)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.refresher == nil {
		c.refresher = NewRefresher()
	}
	return c
}

// Get returns the cached value, fetching it when the entry is missing,
// unreadable or expired.
func (c *Cache[T]) Get(ctx context.Context, fetch Fetcher[T]) (T, error) {
	e, ok := c.load(ctx)
	if ok {
		age := c.now().Sub(e.Timestamp)
		if age < c.staleAfter {
			return e.Data, nil
		}
		if age < c.ttl {
			c.refresh(ctx, fetch)
			return e.Data, nil
		}
	}

	return c.fetchAndStore(ctx, fetch)
}

// Peek returns the stored value regardless of age.
func (c *Cache[T]) Peek(ctx context.Context) (T, bool) {
	e, ok := c.load(ctx)
	return e.Data, ok
}

// Put stores data with the current time.
func (c *Cache[T]) Put(ctx context.Context, data T) error {
	raw, err := json.Marshal(entry[T]{Timestamp: c.now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return c.store.Set(ctx, c.key, raw)
}

// Invalidate drops the entry. The next Get fetches, and fetches that started
// before the call neither store their result nor serve later reads.
func (c *Cache[T]) Invalidate(ctx context.Context) error {
	c.refresher.invalidate(c.flightKey)
	return c.store.Delete(ctx, c.key)
}

// Wait blocks until background refreshes started so far have finished.
func (c *Cache[T]) Wait() {
	c.refresher.Wait()
}

func (c *Cache[T]) load(ctx context.Context) (entry[T], bool) {
	var e entry[T]

	raw, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		slog.Warn("cache read failed", "key", c.key, "error", err)
		return e, false
	}
	if !ok {
		return e, false
	}

	err = json.Unmarshal(raw, &e)
	if err != nil {
		slog.Warn("cache entry corrupt, discarding", "key", c.key, "error", err)
		_ = c.store.Delete(ctx, c.key)
		return e, false
	}

	if c.Valid != nil && !c.Valid(e.Data, c.now()) {
		_ = c.store.Delete(ctx, c.key)
		return e, false
	}

	return e, true
}

func (c *Cache[T]) fetchAndStore(ctx context.Context, fetch Fetcher[T]) (T, error) {
	f, gen := c.refresher.begin(c.flightKey)
	defer c.refresher.end(c.flightKey, f)

	v, err, _ := c.refresher.group.Do(c.flightKey+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		data, err := fetch(ctx)
		if err != nil {
			return data, err
		}

		// Holding f.mu orders the write against a concurrent Invalidate.
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.gen != gen {
			slog.Debug("cache fetch superseded by invalidation, not storing", "key", c.key)
			return data, nil
		}
		err = c.Put(ctx, data)
		if err != nil {
			slog.Warn("cache write failed", "key", c.key, "error", err)
		}
		return data, nil
	})

	data, _ := v.(T)
	return data, err
}

// refresh re-fetches in a goroutine detached from the request. Failures are
// logged and the stale entry stays in place.
func (c *Cache[T]) refresh(ctx context.Context, fetch Fetcher[T]) {
	c.refresher.wg.Add(1)
	go func() {
		defer c.refresher.wg.Done()

		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundRefreshTimeout)
		defer cancel()

		_, err := c.fetchAndStore(bg, fetch)
		if err != nil {
			slog.Warn("background cache refresh failed", "key", c.key, "error", err)
		}
	}()
}
