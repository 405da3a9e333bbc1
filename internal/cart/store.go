// Package cart owns shopper carts: merging of line items, stock clamping,
// aggregates and persistence of every change.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/spice_shop/internal/models"
)

const (
	KeyPrefix  = "cart"
	DefaultTTL = 7 * 24 * time.Hour

	writeTimeout = 5 * time.Second
)

var (
	ErrValidation     = errors.New("validation")
	ErrNotInitialized = errors.New("cart: store used before it was opened")
	ErrClosed         = errors.New("cart: store used after close")
)

// Storage is the durable key-value collaborator carts are written to.
type Storage interface {
	Load(ctx context.Context, key string) (data []byte, found bool, err error)
	Save(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key is the storage key of a session cart.
func Key(sessionID string) string {
	return KeyPrefix + ":" + sessionID
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

type write struct {
	data   []byte
	delete bool
}

// Store is the cart of a single shopper. All methods are safe for concurrent
// use; every read-modify-write happens under one lock.
type Store struct {
	mu      sync.Mutex
	key     string
	items   []models.CartLineItem
	storage Storage
	ttl     time.Duration
	log     *slog.Logger

	subs    map[int]chan []models.CartLineItem
	nextSub int

	// pending holds the newest unwritten cart; older ones are superseded.
	pending *write
	flushes []chan struct{}
	wake    chan struct{}
	stopped chan struct{}
	closed  bool
}

// Open hydrates the cart stored under key and starts its writer. Missing or
// malformed data yields an empty cart. A failing storage read is returned as
// an error so a cart that could not be loaded is never overwritten.
func Open(ctx context.Context, storage Storage, key string, opts ...Option) (*Store, error) {
	s := &Store{
		key:     key,
		storage: storage,
		ttl:     DefaultTTL,
		log:     slog.Default(),
		subs:    make(map[int]chan []models.CartLineItem),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("cart_key", key)

	items, err := s.hydrate(ctx)
	if err != nil {
		return nil, err
	}
	s.items = items
	go s.writer()
	return s, nil
}

func (s *Store) hydrate(ctx context.Context) ([]models.CartLineItem, error) {
	data, found, err := s.storage.Load(ctx, s.key)
	if err != nil {
		s.log.Error("cart_hydrate_failed", "reason", "storage read", "error", err)
		return nil, fmt.Errorf("load cart %s: %w", s.key, err)
	}
	if !found {
		return nil, nil
	}

	var raw []models.CartLineItem
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Warn("cart_hydrate_failed", "reason", "malformed persisted cart", "error", err)
		return nil, nil
	}

	items := normalize(raw)
	if len(items) != len(raw) {
		s.log.Warn("cart_hydrate_normalized", "stored", len(raw), "kept", len(items))
	}
	return items, nil
}

// normalize merges duplicate keys and drops rows that can never satisfy the
// line item invariant.
func normalize(raw []models.CartLineItem) []models.CartLineItem {
	items := make([]models.CartLineItem, 0, len(raw))
	for _, it := range raw {
		if it.ProductID == "" || it.PriceOptionID == "" || it.StockAtAdd < 1 {
			continue
		}
		if i := indexOf(items, it.ProductID, it.PriceOptionID); i >= 0 {
			items[i].Quantity = clamp(items[i].Quantity+it.Quantity, 1, items[i].StockAtAdd)
			continue
		}
		it.Quantity = clamp(it.Quantity, 1, it.StockAtAdd)
		items = append(items, it)
	}
	return items
}

func (s *Store) lock() {
	if s == nil {
		panic(ErrNotInitialized)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		panic(ErrClosed)
	}
}

// AddToCart merges item into the cart and returns the resulting line. A sum
// above the stock snapshot is silently capped at it.
func (s *Store) AddToCart(item models.CartLineItem) (models.CartLineItem, error) {
	if item.ProductID == "" || item.PriceOptionID == "" {
		return models.CartLineItem{}, fmt.Errorf("product and price option are required: %w", ErrValidation)
	}
	if item.StockAtAdd < 1 {
		return models.CartLineItem{}, fmt.Errorf("product %s is out of stock: %w", item.ProductID, ErrValidation)
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	s.lock()
	defer s.mu.Unlock()

	var line models.CartLineItem
	if i := indexOf(s.items, item.ProductID, item.PriceOptionID); i >= 0 {
		existing := &s.items[i]
		existing.Quantity = clamp(existing.Quantity+item.Quantity, 1, item.StockAtAdd)
		existing.StockAtAdd = item.StockAtAdd
		line = *existing
	} else {
		item.Quantity = clamp(item.Quantity, 1, item.StockAtAdd)
		s.items = append(s.items, item)
		line = item
	}

	s.changed()
	return line, nil
}

func (s *Store) RemoveFromCart(productID, priceOptionID string) {
	s.lock()
	defer s.mu.Unlock()

	i := indexOf(s.items, productID, priceOptionID)
	if i < 0 {
		return
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	s.changed()
}

// UpdateQuantity sets the quantity of an existing line within [1, stock].
// ok is false when the line is not in the cart.
func (s *Store) UpdateQuantity(productID, priceOptionID string, quantity int) (models.CartLineItem, bool) {
	s.lock()
	defer s.mu.Unlock()

	i := indexOf(s.items, productID, priceOptionID)
	if i < 0 {
		return models.CartLineItem{}, false
	}
	s.items[i].Quantity = clamp(quantity, 1, s.items[i].StockAtAdd)
	line := s.items[i]
	s.changed()
	return line, true
}

// ClearCart empties the cart and removes its persisted entry.
func (s *Store) ClearCart() {
	s.lock()
	defer s.mu.Unlock()

	s.items = nil
	s.notify()
	s.enqueue(write{delete: true})
}

func (s *Store) Items() []models.CartLineItem {
	s.lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) TotalItems() int {
	s.lock()
	defer s.mu.Unlock()

	total := 0
	for _, it := range s.items {
		total += it.Quantity
	}
	return total
}

// TotalPrice sums the prices captured when items were added.
func (s *Store) TotalPrice() float64 {
	s.lock()
	defer s.mu.Unlock()
	return Total(s.items)
}

// Total sums quantity times unit price, rounded to cents.
func Total(items []models.CartLineItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.UnitPrice).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum.Round(2).InexactFloat64()
}

// Subscribe returns a channel receiving the cart contents after every change,
// starting with the current contents. Slow readers only see the latest cart.
func (s *Store) Subscribe() (<-chan []models.CartLineItem, func()) {
	s.lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan []models.CartLineItem, 1)
	ch <- s.snapshot()
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Flush waits until every change made so far reached storage.
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan struct{})
	s.lock()
	s.flushes = append(s.flushes, done)
	s.signal()
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending writes, ends subscriptions and stops the writer. The
// store must not be used afterwards.
func (s *Store) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, c := range s.subs {
		delete(s.subs, id)
		close(c)
	}
	s.signal()
	s.mu.Unlock()

	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) changed() {
	s.notify()
	data, err := json.Marshal(s.items)
	if err != nil {
		s.log.Error("cart_persist_failed", "reason", "encode", "error", err)
		return
	}
	s.enqueue(write{data: data})
}

func (s *Store) notify() {
	snap := s.snapshot()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// enqueue replaces any unwritten cart with w and never blocks the caller.
func (s *Store) enqueue(w write) {
	s.pending = &w
	s.signal()
}

func (s *Store) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) writer() {
	defer close(s.stopped)
	for range s.wake {
		s.mu.Lock()
		w, flushes, closed := s.pending, s.flushes, s.closed
		s.pending, s.flushes = nil, nil
		s.mu.Unlock()

		if w != nil {
			s.persist(*w)
		}
		for _, done := range flushes {
			close(done)
		}
		if closed {
			return
		}
	}
}

func (s *Store) persist(w write) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	if w.delete {
		err = s.storage.Delete(ctx, s.key)
	} else {
		err = s.storage.Save(ctx, s.key, w.data, s.ttl)
	}
	if err != nil {
		s.log.Error("cart_persist_failed", "delete", w.delete, "error", err)
	}
}

func (s *Store) snapshot() []models.CartLineItem {
	out := make([]models.CartLineItem, len(s.items))
	copy(out, s.items)
	return out
}

func indexOf(items []models.CartLineItem, productID, priceOptionID string) int {
	for i, it := range items {
		if it.ProductID == productID && it.PriceOptionID == priceOptionID {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
