package core

import (
	"time"

	"github.com/nikolaydubina/fpdecimal"
)

// OrderBook is a single instrument's book: price-time priority matching in
// CONTINUOUS_TRADING, queued collection in the auction phases, and a
// deviation band that can force a book into its own INTRADAY_AUCTION
// independent of the engine's global phase (§4.1, §4.3).
//
// An OrderBook never reads a clock itself: every operation that needs to
// stamp an auction_end takes `now` from its caller (§9's deterministic
// clock design note), and it never owns its observer — both are supplied
// by the engine that created it (§5, §9).
type OrderBook struct {
	Instrument Instrument

	backend  OrderBookBackend
	observer BookObserver

	phase      Phase
	sequence   uint64
	auctionEnd time.Time

	referencePrice fpdecimal.Decimal
	lastTradePrice fpdecimal.Decimal

	// maxDeviation is the fraction (e.g. 0.10 for 10%) of referencePrice an
	// incoming or replacing order's price may deviate by before the book
	// trips into INTRADAY_AUCTION (§4.3).
	maxDeviation fpdecimal.Decimal

	// intradayAuctionDuration is how long a book-local auction triggered
	// by a deviation breach runs before the engine restores it to the
	// global phase (§4.3).
	intradayAuctionDuration time.Duration
}

// NewOrderBook constructs a book in CLOSED phase with the instrument's
// configured initial reference price.
func NewOrderBook(instrument Instrument, backend OrderBookBackend, observer BookObserver, maxDeviation fpdecimal.Decimal, intradayAuctionDuration time.Duration) *OrderBook {
	return &OrderBook{
		Instrument:              instrument,
		backend:                 backend,
		observer:                observer,
		phase:                   Closed,
		referencePrice:          instrument.InitialReferencePrice,
		lastTradePrice:          instrument.InitialReferencePrice,
		maxDeviation:            maxDeviation,
		intradayAuctionDuration: intradayAuctionDuration,
	}
}

// Phase returns the book's current trading phase.
func (b *OrderBook) Phase() Phase { return b.phase }

// ReferencePrice returns the price deviation checks are measured against.
func (b *OrderBook) ReferencePrice() fpdecimal.Decimal { return b.referencePrice }

// AuctionEnd returns the timestamp at which the book's own INTRADAY_AUCTION
// resolves. Meaningful only while Phase() == IntradayAuction.
func (b *OrderBook) AuctionEnd() time.Time { return b.auctionEnd }

// nextSequence returns a strictly increasing sequence number, used both as
// an order's FIFO tie-breaker and as a deal's sequence stamp.
func (b *OrderBook) nextSequence() uint64 {
	b.sequence++
	return b.sequence
}

// Insert adds a new order to the book (§4.1, §6). In CONTINUOUS_TRADING, an
// order priced within the deviation band matches immediately against
// resting interest; one priced outside it trips the book into
// INTRADAY_AUCTION and is queued unmatched. In an auction phase every
// order is queued without matching. CLOSED rejects all inserts. now
// stamps the book's auction_end if this call trips INTRADAY_AUCTION.
func (b *OrderBook) Insert(order *Order, now time.Time) error {
	if b.phase == Closed {
		return &PhaseError{Phase: b.phase, Operation: "Insert"}
	}
	if order.Type != TypeLimit && order.Type != TypeMarket {
		return &Rejection{OrderID: order.Key.OrderID, Reason: "unrecognized order type", Err: ErrInvalidArgument}
	}
	if order.Quantity.LessThanOrEqual(fpdecimal.Zero) {
		return &Rejection{OrderID: order.Key.OrderID, Reason: "non-positive quantity", Err: ErrInvalidQuantity}
	}
	if order.Type == TypeLimit && order.Price.LessThanOrEqual(fpdecimal.Zero) {
		return &Rejection{OrderID: order.Key.OrderID, Reason: "non-positive price", Err: ErrInvalidPrice}
	}
	if existing := b.backend.GetOrder(order.Key); existing != nil {
		return &Rejection{OrderID: order.Key.OrderID, Reason: "order already exists", Err: ErrOrderExists}
	}

	order.Sequence = b.nextSequence()

	if b.phase.IsAuction() {
		return b.queueForAuction(order)
	}

	// CONTINUOUS_TRADING: check the order's own price against the
	// deviation band before attempting to match it. A market order has no
	// price of its own, so it is judged against last_traded_price — the
	// natural extrapolation of §4.1's market-order rule, since the book
	// never reads a live market price.
	checkPrice := order.Price
	if order.Type == TypeMarket {
		checkPrice = b.lastTradePrice
	}
	if b.deviationBreached(checkPrice) {
		b.enterIntradayAuction(now)
		return b.queueForAuction(order)
	}

	b.matchContinuous(order)
	if order.IsFilled() {
		return nil
	}
	if order.Type == TypeMarket {
		// An unfilled market order rests at last_traded_price rather than
		// being dropped (§4.1, §8). lastTradePrice starts at the
		// instrument's initial reference price, so before the first trade
		// the order rests there; it is rejected only when that price is
		// not positive.
		if b.lastTradePrice.LessThanOrEqual(fpdecimal.Zero) {
			return &Rejection{OrderID: order.Key.OrderID, Reason: "no last traded price to rest market order against", Err: ErrInsufficientQuantity}
		}
		order.Price = b.lastTradePrice
	}
	b.rest(order)
	return nil
}

// queueForAuction stores order without matching it, for later uncrossing.
// It is the same storage operation as rest — the name documents intent at
// the call site (§4.1: auction phases queue, CONTINUOUS_TRADING rests the
// unfilled remainder).
func (b *OrderBook) queueForAuction(order *Order) error {
	b.rest(order)
	return nil
}

// rest places a partially- or un-filled order on its side of the book at
// the back of its price level's FIFO queue. A market order reaches it only
// after Insert has stamped a Price onto it.
func (b *OrderBook) rest(order *Order) {
	if err := b.backend.StoreOrder(order); err != nil {
		panic(&InvariantViolation{Invariant: "I-STORE", Detail: err.Error()})
	}
	if order.Side == Buy {
		b.backend.Bids(order.Key.ProductID).Append(order)
	} else {
		b.backend.Asks(order.Key.ProductID).Append(order)
	}
}

// Modify applies an OrderReplace to a resting order (§4.1, §6). A price
// change or a quantity increase loses time priority and re-queues at the
// back of the (possibly new) price level; a quantity decrease keeps the
// order's place in its queue.
func (b *OrderBook) Modify(replace OrderReplace, now time.Time) error {
	if b.phase == Closed {
		return &PhaseError{Phase: b.phase, Operation: "Modify"}
	}
	existing := b.backend.GetOrder(replace.Key)
	if existing == nil {
		return &Rejection{OrderID: replace.Key.OrderID, Reason: "no such resting order", Err: ErrNonexistentOrder}
	}
	if replace.NewQuantity.LessThanOrEqual(fpdecimal.Zero) {
		return &Rejection{OrderID: replace.Key.OrderID, Reason: "non-positive quantity", Err: ErrInvalidQuantity}
	}
	if replace.NewPrice.LessThanOrEqual(fpdecimal.Zero) {
		return &Rejection{OrderID: replace.Key.OrderID, Reason: "non-positive price", Err: ErrInvalidPrice}
	}

	losesPriority := replace.LosesPriority(existing)

	if !losesPriority {
		// A pure quantity decrease at an unchanged price mutates the
		// resting order in place instead of re-queuing it, keeping its
		// position at its price level's FIFO queue (§4.1's priority rule
		// and §8's idempotence law for a Modify with identical fields).
		existing.Quantity = replace.NewQuantity
		existing.Remaining = replace.NewQuantity
		return nil
	}

	side := b.sideOf(existing)
	if !side.Remove(existing) {
		panic(&InvariantViolation{Invariant: "I-INDEX", Detail: "order indexed but absent from its side queue"})
	}
	b.backend.DeleteOrder(existing.Key)

	existing.Price = replace.NewPrice
	existing.Quantity = replace.NewQuantity
	existing.Remaining = replace.NewQuantity
	existing.Sequence = b.nextSequence()

	if b.phase.IsAuction() {
		return b.queueForAuction(existing)
	}

	// existing is always a resting order here, and its own Price is always
	// meaningful: a resting limit order keeps the price it was entered or
	// last replaced at, and a resting market order (Insert may now queue
	// an unfilled market order's residual at last_traded_price) already
	// had a concrete Price stamped onto it before it was ever rested.
	if b.deviationBreached(existing.Price) {
		b.enterIntradayAuction(now)
		return b.queueForAuction(existing)
	}
	b.matchContinuous(existing)
	if existing.IsFilled() {
		return nil
	}
	b.rest(existing)
	return nil
}

// Delete cancels a resting order by key (§4.1, §6).
func (b *OrderBook) Delete(key OrderKey) error {
	if b.phase == Closed {
		return &PhaseError{Phase: b.phase, Operation: "Delete"}
	}
	existing := b.backend.GetOrder(key)
	if existing == nil {
		return &Rejection{OrderID: key.OrderID, Reason: "no such resting order", Err: ErrNonexistentOrder}
	}
	b.removeResting(existing)
	return nil
}

// removeResting takes order off its side queue and out of the index
// without any notification — used for caller-solicited cancels. For
// book-internal cancels, call CancelUnsolicited instead.
func (b *OrderBook) removeResting(order *Order) {
	side := b.sideOf(order)
	side.Remove(order)
	b.backend.DeleteOrder(order.Key)
}

// CancelUnsolicited removes a resting order on the book's own initiative
// and notifies the observer (§9 supplemented feature).
func (b *OrderBook) CancelUnsolicited(order *Order) {
	b.removeResting(order)
	b.observer.NotifyUnsolicitedCancel(order)
}

func (b *OrderBook) sideOf(order *Order) PriceSide {
	if order.Side == Buy {
		return b.backend.Bids(order.Key.ProductID)
	}
	return b.backend.Asks(order.Key.ProductID)
}

// CancelAllOrders cancels every resting order on the book without
// generating deals (§4.1). SetPhase calls this automatically on any
// transition into CLOSED; it is also exported for direct calls.
func (b *OrderBook) CancelAllOrders() {
	for _, price := range b.backend.Bids(b.Instrument.ProductID).Prices() {
		for _, order := range append([]*Order{}, b.backend.Bids(b.Instrument.ProductID).Orders(price)...) {
			b.CancelUnsolicited(order)
		}
	}
	for _, price := range b.backend.Asks(b.Instrument.ProductID).Prices() {
		for _, order := range append([]*Order{}, b.backend.Asks(b.Instrument.ProductID).Orders(price)...) {
			b.CancelUnsolicited(order)
		}
	}
	b.backend.Clear(b.Instrument.ProductID)
}

// matchContinuous matches taker against the opposite side's resting
// interest in strict price-time priority until the taker is filled or no
// further crossing price exists (§4.1's continuous matching algorithm).
// Callers are responsible for checking the deviation band on taker's own
// price before calling this — matching itself never re-checks it against
// each maker's price.
func (b *OrderBook) matchContinuous(taker *Order) {
	opposite := b.oppositeSide(taker.Side)

	for !taker.IsFilled() {
		prices := opposite.Prices()
		if len(prices) == 0 {
			break
		}
		bestPrice := prices[0]
		if taker.Type == TypeLimit && !b.crosses(taker, bestPrice) {
			break
		}

		queue := opposite.Orders(bestPrice)
		if len(queue) == 0 {
			break
		}
		maker := queue[0]

		matchQty := taker.Remaining
		if maker.Remaining.LessThan(matchQty) {
			matchQty = maker.Remaining
		}

		taker.Remaining = taker.Remaining.Sub(matchQty)
		maker.Remaining = maker.Remaining.Sub(matchQty)

		deal := Deal{
			ProductID: b.Instrument.ProductID,
			Sequence:  b.nextSequence(),
			Price:     maker.Price,
			Quantity:  matchQty,
			MakerKey:  maker.Key,
			TakerKey:  taker.Key,
			MakerSide: maker.Side,
		}
		b.lastTradePrice = maker.Price
		b.observer.NotifyDeal(deal)

		if maker.IsFilled() {
			opposite.Remove(maker)
			b.backend.DeleteOrder(maker.Key)
		}
	}
}

// crosses reports whether a limit taker's price crosses bestPrice on the
// opposite side.
func (b *OrderBook) crosses(taker *Order, bestPrice fpdecimal.Decimal) bool {
	if taker.Side == Buy {
		return taker.Price.GreaterThanOrEqual(bestPrice)
	}
	return taker.Price.LessThanOrEqual(bestPrice)
}

func (b *OrderBook) oppositeSide(side Side) PriceSide {
	if side == Buy {
		return b.backend.Asks(b.Instrument.ProductID)
	}
	return b.backend.Bids(b.Instrument.ProductID)
}

// deviationBreached reports whether price falls outside
// [reference_price*(1-D), reference_price*(1+D)] (§4.1, §4.3). Checked
// against an incoming order's own price before matching is attempted, not
// against each fill price during matching.
func (b *OrderBook) deviationBreached(price fpdecimal.Decimal) bool {
	if b.maxDeviation.LessThanOrEqual(fpdecimal.Zero) {
		return false
	}
	diff := price.Sub(b.referencePrice)
	if diff.LessThan(fpdecimal.Zero) {
		diff = fpdecimal.Zero.Sub(diff)
	}
	limit := b.referencePrice.Mul(b.maxDeviation)
	return diff.GreaterThan(limit)
}

// enterIntradayAuction moves the book into its own auction phase,
// independent of the engine's global phase, stamps the auction's end time,
// and notifies the observer so the engine can track it as a monitored book
// until auction_end (§4.3).
func (b *OrderBook) enterIntradayAuction(now time.Time) {
	b.phase = IntradayAuction
	b.auctionEnd = now.Add(b.intradayAuctionDuration)
	b.observer.NotifyIntradayAuction(b.Instrument.ProductID)
}

// SetPhase transitions the book to phase, implementing §4.1's
// SetTradingPhase contract directly: leaving any auction phase
// (OPENING_AUCTION, CLOSING_AUCTION, or INTRADAY_AUCTION) runs the
// uncrosser first, and arriving at CLOSED cancels every resting order.
// Both can apply to the same call, e.g. CLOSING_AUCTION → CLOSED.
func (b *OrderBook) SetPhase(phase Phase) {
	leavingAuction := b.phase.IsAuction()
	b.phase = phase

	if leavingAuction {
		b.Uncross()
	}
	if phase == Closed {
		b.CancelAllOrders()
	}
}

// Uncross runs the auction uncrossing algorithm against the book's queued
// auction orders and matches as many of them as the algorithm's chosen
// clearing price allows (§4.2). It is a no-op if the book holds no
// crossing auction interest.
func (b *OrderBook) Uncross() {
	bids := b.backend.Bids(b.Instrument.ProductID)
	asks := b.backend.Asks(b.Instrument.ProductID)

	clearingPrice, volume, ok := computeClearingPrice(bids, asks, b.referencePrice)
	if !ok || volume.LessThanOrEqual(fpdecimal.Zero) {
		return
	}

	b.executeAuctionFills(bids, asks, clearingPrice, volume)
	b.referencePrice = clearingPrice
	b.lastTradePrice = clearingPrice
}

// executeAuctionFills walks both sides' FIFO queues at or better than the
// clearing price, matching orders pairwise at the single clearing price
// until volume has been exhausted.
func (b *OrderBook) executeAuctionFills(bids, asks PriceSide, clearingPrice, volume fpdecimal.Decimal) {
	remaining := volume

	bidOrders := eligibleAuctionOrders(bids, clearingPrice, Buy)
	askOrders := eligibleAuctionOrders(asks, clearingPrice, Sell)

	bi, ai := 0, 0
	for remaining.GreaterThan(fpdecimal.Zero) && bi < len(bidOrders) && ai < len(askOrders) {
		bidOrder := bidOrders[bi]
		askOrder := askOrders[ai]

		matchQty := bidOrder.Remaining
		if askOrder.Remaining.LessThan(matchQty) {
			matchQty = askOrder.Remaining
		}
		if remaining.LessThan(matchQty) {
			matchQty = remaining
		}

		bidOrder.Remaining = bidOrder.Remaining.Sub(matchQty)
		askOrder.Remaining = askOrder.Remaining.Sub(matchQty)
		remaining = remaining.Sub(matchQty)

		deal := Deal{
			ProductID:   b.Instrument.ProductID,
			Sequence:    b.nextSequence(),
			Price:       clearingPrice,
			Quantity:    matchQty,
			MakerKey:    askOrder.Key,
			TakerKey:    bidOrder.Key,
			MakerSide:   Sell,
			AuctionDeal: true,
		}
		b.observer.NotifyDeal(deal)

		if bidOrder.IsFilled() {
			bids.Remove(bidOrder)
			b.backend.DeleteOrder(bidOrder.Key)
			bi++
		}
		if askOrder.IsFilled() {
			asks.Remove(askOrder)
			b.backend.DeleteOrder(askOrder.Key)
			ai++
		}
	}
}

// eligibleAuctionOrders flattens a side's queued orders in price-time
// priority, restricted to those that cross the clearing price.
func eligibleAuctionOrders(side PriceSide, clearingPrice fpdecimal.Decimal, s Side) []*Order {
	var out []*Order
	for _, price := range side.Prices() {
		eligible := price.GreaterThanOrEqual(clearingPrice)
		if s == Sell {
			eligible = price.LessThanOrEqual(clearingPrice)
		}
		if !eligible {
			continue
		}
		out = append(out, side.Orders(price)...)
	}
	return out
}
