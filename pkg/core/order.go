package core

import "github.com/nikolaydubina/fpdecimal"

// OrderKey is an order's immutable identity (§3): `(order_id, client_id,
// side)`, scoped to the instrument it was entered against. client_id
// scopes order_id, so two different clients may reuse the same order id
// without collision; ProductID additionally scopes the key for backends
// that store more than one instrument's orders in one index.
type OrderKey struct {
	ProductID uint32
	OrderID   uint64
	ClientID  uint64
	Side      Side
}

// Order is a single resting or incoming order, per §3's data model. Its
// side lives on Key (identity includes side per §3) and is mirrored onto
// the Side field for convenient access; constructors keep the two in
// sync and nothing else should need to change one without the other.
// A TypeMarket order is constructed with Price at its zero value;
// OrderBook.Insert stamps last_traded_price onto it only when its unfilled
// remainder is rested.
type Order struct {
	Key      OrderKey
	Side     Side
	Type     OrderType
	Price    fpdecimal.Decimal
	Quantity fpdecimal.Decimal

	// Remaining is the quantity not yet matched. It starts equal to
	// Quantity and is decremented in place as fills occur.
	Remaining fpdecimal.Decimal

	// Sequence is the book-assigned entry sequence number, used as the
	// tie-breaker for FIFO priority at a price level (§4.1).
	Sequence uint64
}

// NewLimitOrder constructs a resting limit order with Remaining == Quantity.
// side determines the order's side and overwrites key.Side.
func NewLimitOrder(key OrderKey, side Side, price, quantity fpdecimal.Decimal) *Order {
	key.Side = side
	return &Order{
		Key:       key,
		Side:      side,
		Type:      TypeLimit,
		Price:     price,
		Quantity:  quantity,
		Remaining: quantity,
	}
}

// NewMarketOrder constructs a market order with Remaining == Quantity.
// side determines the order's side and overwrites key.Side.
func NewMarketOrder(key OrderKey, side Side, quantity fpdecimal.Decimal) *Order {
	key.Side = side
	return &Order{
		Key:       key,
		Side:      side,
		Type:      TypeMarket,
		Quantity:  quantity,
		Remaining: quantity,
	}
}

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.Remaining.LessThanOrEqual(fpdecimal.Zero)
}

// OrderReplace describes a Modify request (§6): a resting order's price
// and/or quantity is changed. Per §4.1, a quantity increase or a price
// change both lose time priority and re-enter the book at the back of the
// new price level's queue; a quantity decrease alone keeps priority.
type OrderReplace struct {
	Key         OrderKey
	NewPrice    fpdecimal.Decimal
	NewQuantity fpdecimal.Decimal
}

// LosesPriority reports whether applying this replace to existing would
// require the order to be re-queued at the back of its price level.
func (r *OrderReplace) LosesPriority(existing *Order) bool {
	if !r.NewPrice.Equal(existing.Price) {
		return true
	}
	return r.NewQuantity.GreaterThan(existing.Remaining)
}
