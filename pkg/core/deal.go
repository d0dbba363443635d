package core

import "github.com/nikolaydubina/fpdecimal"

// Deal is a single execution between a resting (maker) and an incoming
// (taker) order, per §3. Deals are immutable once created and form the
// outbound trade stream §6 describes.
type Deal struct {
	ProductID   uint32
	Sequence    uint64
	Price       fpdecimal.Decimal
	Quantity    fpdecimal.Decimal
	MakerKey    OrderKey
	TakerKey    OrderKey
	MakerSide   Side
	AuctionDeal bool
}

// DealObserver is notified of every committed deal. Implementations must
// not block the caller for long: the engine calls this synchronously from
// inside Insert/Modify/Tick (§5 — single-threaded, cooperative).
type DealObserver interface {
	NotifyDeal(deal Deal)
}

// BookObserver is the minimal set of non-owning callbacks an OrderBook
// makes into its owner (§9's "observer, not owner" design note). The
// engine implements this to learn about fills, book-local auction
// transitions, and unsolicited cancellations without the book holding a
// reference back to the engine's full API.
type BookObserver interface {
	DealObserver

	// NotifyIntradayAuction is called when a book's own deviation check
	// trips and it enters INTRADAY_AUCTION on its own (§4.3), independent
	// of the global phase.
	NotifyIntradayAuction(productID uint32)

	// NotifyUnsolicitedCancel is called when the book cancels an order
	// without an explicit client Delete request — CancelAllOrders uses it
	// for every order it drops when the book reaches CLOSED.
	NotifyUnsolicitedCancel(order *Order)
}
