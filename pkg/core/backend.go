package core

import "github.com/nikolaydubina/fpdecimal"

// PriceSide is one side (bid or ask) of a single instrument's book: a set
// of price levels, each holding a FIFO queue of resting orders, kept in
// the side's natural priority order (best price first).
type PriceSide interface {
	// Prices returns the side's distinct price levels, best-first (highest
	// first for bids, lowest first for asks).
	Prices() []fpdecimal.Decimal

	// Orders returns the FIFO queue resting at price, oldest first.
	Orders(price fpdecimal.Decimal) []*Order

	// Append adds order to the back of its price level's queue.
	Append(order *Order)

	// Remove takes order out of its price level's queue. Reports whether
	// the order was found.
	Remove(order *Order) bool

	// Len reports the total number of resting orders on this side.
	Len() int
}

// OrderBookBackend is the storage abstraction an OrderBook is built on
// (§9's "pluggable backend" design note): an in-process map-of-heaps
// (pkg/backend/memory) or a shared Redis instance (pkg/backend/redis).
// An OrderBook never reaches past this interface into backend internals.
type OrderBookBackend interface {
	// GetOrder looks up a resting order by key. Returns nil if absent.
	GetOrder(key OrderKey) *Order

	// StoreOrder indexes order by its key for GetOrder lookups. It does
	// not place the order on a side queue; callers use Bids()/Asks() for
	// that.
	StoreOrder(order *Order) error

	// DeleteOrder removes the order's index entry. It does not remove it
	// from a side queue.
	DeleteOrder(key OrderKey)

	// Bids returns the backend's bid-side storage for productID.
	Bids(productID uint32) PriceSide

	// Asks returns the backend's ask-side storage for productID.
	Asks(productID uint32) PriceSide

	// Clear drops all state for productID — used when a book reaches
	// CLOSED and its resting interest is cancelled (§4.3).
	Clear(productID uint32)
}
