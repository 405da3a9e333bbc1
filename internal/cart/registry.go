package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	store    *Store
	refs     int
	lastUsed time.Time
}

// Registry hands out the store of each shopper session. A session's cart is
// hydrated once and shared by all of its concurrent requests.
type Registry struct {
	mu      sync.Mutex
	storage Storage
	opts    []Option
	log     *slog.Logger
	stores  map[string]*entry
	now     func() time.Time
}

func NewRegistry(storage Storage, log *slog.Logger, opts ...Option) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		storage: storage,
		opts:    append([]Option{WithLogger(log)}, opts...),
		log:     log,
		stores:  make(map[string]*entry),
		now:     time.Now,
	}
}

// Acquire returns the session's store. release must be called once the
// caller is done with it. A cart that cannot be loaded is not cached, so the
// next request retries the read.
func (r *Registry) Acquire(ctx context.Context, sessionID string) (*Store, func(), error) {
	if r == nil {
		panic(ErrNotInitialized)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.stores[sessionID]
	if !ok {
		store, err := Open(ctx, r.storage, Key(sessionID), r.opts...)
		if err != nil {
			return nil, nil, err
		}
		e = &entry{store: store}
		r.stores[sessionID] = e
	}
	e.refs++
	e.lastUsed = r.now()

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			e.refs--
			e.lastUsed = r.now()
		})
	}
	return e.store, release, nil
}

// Sweep closes stores nobody holds that have been idle for longer than idle.
// Their carts stay in storage and are hydrated again on the next request.
// Stores are closed under the registry lock so a returning session never
// hydrates before the previous store's writes landed.
func (r *Registry) Sweep(ctx context.Context, idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	cutoff := r.now().Add(-idle)
	for id, e := range r.stores {
		if e.refs > 0 || e.lastUsed.After(cutoff) {
			continue
		}
		delete(r.stores, id)
		evicted++
		if err := e.store.Close(ctx); err != nil {
			r.log.Error("cart_evict_failed", "session", id, "error", err)
		}
	}
	return evicted
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Close flushes and closes every open store.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, e := range r.stores {
		delete(r.stores, id)
		if err := e.store.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
