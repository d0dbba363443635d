// Package memory implements core.OrderBookBackend as an in-process
// map-of-heaps, adapted from joripage-orderbook-dev's orderbook package:
// a *container/heap*-backed PriceHeap per side indexes the price levels
// (Prices sorts a copy of it best-first on each call), and a
// gammazero/deque.Deque per price level gives O(1) FIFO push/pop for the
// orders resting there.
package memory

import (
	"container/heap"
	"sync"

	"github.com/gammazero/deque"
	"github.com/nikolaydubina/fpdecimal"

	"github.com/silvermoon-h/matching-engine-2/pkg/core"
)

// priceHeap is joripage's PriceHeap, retyped from float64 to
// fpdecimal.Decimal so price comparisons never lose precision to a float
// conversion. Like the teacher's backends, the dedup index keys off
// price.String() rather than the Decimal itself — matchingo's own maps
// never use fpdecimal.Decimal as a key type directly, always its string
// form, so this follows the same convention rather than assume Decimal is
// safe as a map key.
type priceHeap struct {
	prices []fpdecimal.Decimal
	less   func(a, b fpdecimal.Decimal) bool
	index  map[string]bool
}

func newPriceHeap(less func(a, b fpdecimal.Decimal) bool) *priceHeap {
	return &priceHeap{
		prices: []fpdecimal.Decimal{},
		less:   less,
		index:  make(map[string]bool),
	}
}

func (h priceHeap) Len() int           { return len(h.prices) }
func (h priceHeap) Less(i, j int) bool { return h.less(h.prices[i], h.prices[j]) }
func (h priceHeap) Swap(i, j int)      { h.prices[i], h.prices[j] = h.prices[j], h.prices[i] }

func (h *priceHeap) Push(x any) {
	price := x.(fpdecimal.Decimal)
	key := price.String()
	if !h.index[key] {
		h.index[key] = true
		h.prices = append(h.prices, price)
	}
}

func (h *priceHeap) Pop() any {
	n := len(h.prices)
	price := h.prices[n-1]
	h.prices = h.prices[:n-1]
	delete(h.index, price.String())
	return price
}

// side is one side (bid or ask) of one instrument's book: a price heap
// plus a FIFO queue per price level. It implements core.PriceSide.
type side struct {
	mu     sync.Mutex
	levels map[string]*deque.Deque[*core.Order]
	heap   *priceHeap
}

func newSide(best func(a, b fpdecimal.Decimal) bool) *side {
	return &side{
		levels: make(map[string]*deque.Deque[*core.Order]),
		heap:   newPriceHeap(best),
	}
}

// Prices returns non-empty price levels best-first. A price whose level
// Remove has emptied stays in the heap; Prices skips it rather than
// popping it.
func (s *side) Prices() []fpdecimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]fpdecimal.Decimal, len(s.heap.prices))
	copy(ordered, s.heap.prices)
	sortByHeapOrder(ordered, s.heap.less)

	out := make([]fpdecimal.Decimal, 0, len(ordered))
	for _, p := range ordered {
		if q, ok := s.levels[p.String()]; ok && q.Len() > 0 {
			out = append(out, p)
		}
	}
	return out
}

func sortByHeapOrder(prices []fpdecimal.Decimal, less func(a, b fpdecimal.Decimal) bool) {
	for i := 1; i < len(prices); i++ {
		for j := i; j > 0 && less(prices[j], prices[j-1]); j-- {
			prices[j], prices[j-1] = prices[j-1], prices[j]
		}
	}
}

func (s *side) Orders(price fpdecimal.Decimal) []*core.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.levels[price.String()]
	if !ok {
		return nil
	}
	out := make([]*core.Order, q.Len())
	for i := 0; i < q.Len(); i++ {
		out[i] = q.At(i)
	}
	return out
}

func (s *side) Append(order *core.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	priceKey := order.Price.String()
	q, ok := s.levels[priceKey]
	if !ok {
		q = &deque.Deque[*core.Order]{}
		s.levels[priceKey] = q
		heap.Push(s.heap, order.Price)
	}
	q.PushBack(order)
}

// Remove takes order out of its price level's deque. Deque exposes no
// arbitrary-index delete, so it rotates through the whole level once,
// popping each order from the front and pushing it back unless it is the
// target, which keeps the remaining orders in their FIFO order.
func (s *side) Remove(order *core.Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	priceKey := order.Price.String()
	q, ok := s.levels[priceKey]
	if !ok {
		return false
	}

	found := false
	n := q.Len()
	for i := 0; i < n; i++ {
		front := q.PopFront()
		if front.Key == order.Key {
			found = true
			continue
		}
		q.PushBack(front)
	}

	if q.Len() == 0 {
		delete(s.levels, priceKey)
	}
	return found
}

func (s *side) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, q := range s.levels {
		total += q.Len()
	}
	return total
}

// Backend is an in-process core.OrderBookBackend. A single Backend can
// serve any number of instruments; each gets its own bid/ask side pair on
// first touch.
type Backend struct {
	mu     sync.Mutex
	orders map[core.OrderKey]*core.Order
	bids   map[uint32]*side
	asks   map[uint32]*side
}

// NewBackend constructs an empty in-process backend.
func NewBackend() *Backend {
	return &Backend{
		orders: make(map[core.OrderKey]*core.Order),
		bids:   make(map[uint32]*side),
		asks:   make(map[uint32]*side),
	}
}

func (b *Backend) GetOrder(key core.OrderKey) *core.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.orders[key]
}

func (b *Backend) StoreOrder(order *core.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[order.Key] = order
	return nil
}

func (b *Backend) DeleteOrder(key core.OrderKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.orders, key)
}

func (b *Backend) Bids(productID uint32) core.PriceSide {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.bids[productID]
	if !ok {
		s = newSide(func(a, b fpdecimal.Decimal) bool { return a.GreaterThan(b) }) // max-heap
		b.bids[productID] = s
	}
	return s
}

func (b *Backend) Asks(productID uint32) core.PriceSide {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.asks[productID]
	if !ok {
		s = newSide(func(a, b fpdecimal.Decimal) bool { return a.LessThan(b) }) // min-heap
		b.asks[productID] = s
	}
	return s
}

func (b *Backend) Clear(productID uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bids, productID)
	delete(b.asks, productID)
	for key, order := range b.orders {
		if key.ProductID == productID {
			delete(b.orders, key)
			_ = order
		}
	}
}
