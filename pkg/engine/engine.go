// Package engine implements the matching engine (§4.3): a container of
// order books keyed by product id, the global trading-phase state machine,
// and the set of books currently in their own INTRADAY_AUCTION. Grounded
// in the teacher's pkg/server/manager.go (a mutex-guarded map of books with
// a logging facade) generalized from the teacher's name-keyed single-book
// CRUD surface to this spec's product-id-keyed dispatch and phase
// machinery, which the teacher never had.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog"

	"github.com/silvermoon-h/matching-engine-2/config"
	"github.com/silvermoon-h/matching-engine-2/pkg/backend/memory"
	"github.com/silvermoon-h/matching-engine-2/pkg/core"
	"github.com/silvermoon-h/matching-engine-2/pkg/instrumentdb"
	"github.com/silvermoon-h/matching-engine-2/pkg/logging"
	"github.com/silvermoon-h/matching-engine-2/pkg/messaging"
	engineotel "github.com/silvermoon-h/matching-engine-2/pkg/otel"
)

// globalPhases is the set of phases SetGlobalPhase accepts (§4.3):
// INTRADAY_AUCTION is book-local and can never be set globally.
var globalPhases = map[core.Phase]bool{
	core.OpeningAuction:    true,
	core.ContinuousTrading: true,
	core.ClosingAuction:    true,
	core.Closed:            true,
}

// MatchingEngine owns every instrument's OrderBook, the global phase clock,
// and the set of books currently running their own INTRADAY_AUCTION. It
// implements core.BookObserver so every book it creates can notify it of
// deals, intraday auction trips, and unsolicited cancels without a back
// reference to the engine's concrete type (§9's observer design note).
type MatchingEngine struct {
	mu sync.Mutex

	books     map[uint32]*core.OrderBook
	monitored map[uint32]bool

	globalPhase core.Phase
	auctionEnd  time.Time

	startTime, stopTime                                time.Time
	openingDuration, closingDuration, intradayDuration time.Duration
	maxPriceDeviation                                  float64

	dealSink messaging.MessageSender
}

// New constructs an unconfigured engine in CLOSED phase.
func New() *MatchingEngine {
	return &MatchingEngine{
		books:       make(map[uint32]*core.OrderBook),
		monitored:   make(map[uint32]bool),
		globalPhase: core.Closed,
	}
}

// SetDealSink wires an outbound deal stream (§6): every committed deal,
// continuous or auction, is forwarded to sink after being recorded.
func (e *MatchingEngine) SetDealSink(sink messaging.MessageSender) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dealSink = sink
}

// Configure loads the instrument database at cfg.InstrumentDBPath and
// builds one book per instrument, mirroring
// MatchingEngine::LoadConfiguration + LoadInstruments from the original
// source. It fails on a malformed instrument database or (via
// instrumentdb.Load) a duplicate product id or name.
func (e *MatchingEngine) Configure(cfg *config.EngineConfig) error {
	instruments, err := instrumentdb.Load(cfg.InstrumentDBPath)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.startTime = cfg.StartTime
	e.stopTime = cfg.StopTime
	e.openingDuration = cfg.OpeningAuctionDuration
	e.closingDuration = cfg.ClosingAuctionDuration
	e.intradayDuration = cfg.IntradayAuctionDuration
	e.maxPriceDeviation = cfg.MaxPriceDeviation

	backend := memory.NewBackend()
	deviation := fpdecimal.FromFloat(e.maxPriceDeviation)

	books := make(map[uint32]*core.OrderBook, len(instruments))
	for _, instrument := range instruments {
		if _, exists := books[instrument.ProductID]; exists {
			return &core.ConfigError{Source: cfg.InstrumentDBPath, Err: fmt.Errorf("duplicate product id %d", instrument.ProductID)}
		}
		books[instrument.ProductID] = core.NewOrderBook(instrument, backend, e, deviation, e.intradayDuration)
	}

	e.books = books
	e.monitored = make(map[uint32]bool)
	e.globalPhase = core.Closed
	return nil
}

// Insert dispatches order to its book (§4.3). Returns an error if no book
// exists for productID.
func (e *MatchingEngine) Insert(order *core.Order, productID uint32, now time.Time) error {
	book, err := e.bookFor(productID)
	if err != nil {
		return err
	}
	ctx, span := engineotel.StartSpan(context.Background(), engineotel.SpanInsert)
	defer span.End()
	if err := book.Insert(order, now); err != nil {
		engineotel.GetEngineMetrics().RecordRejection(ctx, "Insert")
		return err
	}
	return nil
}

// Modify dispatches replace to its book (§4.3).
func (e *MatchingEngine) Modify(replace core.OrderReplace, productID uint32, now time.Time) error {
	book, err := e.bookFor(productID)
	if err != nil {
		return err
	}
	ctx, span := engineotel.StartSpan(context.Background(), engineotel.SpanModify)
	defer span.End()
	if err := book.Modify(replace, now); err != nil {
		engineotel.GetEngineMetrics().RecordRejection(ctx, "Modify")
		return err
	}
	return nil
}

// Delete dispatches a cancel to its book (§4.3).
func (e *MatchingEngine) Delete(key core.OrderKey, productID uint32) error {
	book, err := e.bookFor(productID)
	if err != nil {
		return err
	}
	_, span := engineotel.StartSpan(context.Background(), engineotel.SpanDelete)
	defer span.End()
	return book.Delete(key)
}

func (e *MatchingEngine) bookFor(productID uint32) (*core.OrderBook, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, ok := e.books[productID]
	if !ok {
		return nil, &core.Rejection{Reason: "unknown instrument", Err: core.ErrUnknownInstrument}
	}
	return book, nil
}

// SetGlobalPhase transitions every book to phase (§4.3). INTRADAY_AUCTION
// is rejected with a PhaseError since it is book-local, never global.
func (e *MatchingEngine) SetGlobalPhase(phase core.Phase) error {
	if !globalPhases[phase] {
		return &core.PhaseError{Phase: phase, Operation: "SetGlobalPhase"}
	}

	e.mu.Lock()
	books := make([]*core.OrderBook, 0, len(e.books))
	for _, book := range e.books {
		books = append(books, book)
	}
	e.globalPhase = phase
	e.mu.Unlock()

	for _, book := range books {
		book.SetPhase(phase)
	}
	return nil
}

// GlobalPhase returns the engine's current global phase.
func (e *MatchingEngine) GlobalPhase() core.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.globalPhase
}

// BookStatus is a read-only snapshot of one instrument's book, exposed over
// the status endpoint (§6).
type BookStatus struct {
	ProductID      uint32
	Name           string
	Phase          core.Phase
	ReferencePrice string
}

// BookStatuses returns a snapshot of every configured book, sorted by
// product id.
func (e *MatchingEngine) BookStatuses() []BookStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	statuses := make([]BookStatus, 0, len(e.books))
	for productID, book := range e.books {
		statuses = append(statuses, BookStatus{
			ProductID:      productID,
			Name:           book.Instrument.Name,
			Phase:          book.Phase(),
			ReferencePrice: book.ReferencePrice().String(),
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ProductID < statuses[j].ProductID })
	return statuses
}

// openWindow reports whether now falls within [startTime, stopTime).
func (e *MatchingEngine) openWindow(now time.Time) bool {
	return !now.Before(e.startTime) && now.Before(e.stopTime)
}

// Tick is the engine's single time-driven entry point (§4.3, §5, §9): the
// caller supplies now, so behavior is fully deterministic and testable.
// It first resolves any per-book intraday auction whose auction_end has
// passed, then advances the global phase state machine — in that order,
// deliberately, so a book returning from INTRADAY_AUCTION in the same tick
// the global phase also transitions uncrosses against the phase it is
// returning to, not the new one (a supplemented behavior carried over from
// EngineListen's CheckOrderBooks-before-global-phase ordering in the
// original source).
func (e *MatchingEngine) Tick(now time.Time) {
	e.resolveIntradayAuctions(now)
	e.advanceGlobalPhase(now)
}

func (e *MatchingEngine) resolveIntradayAuctions(now time.Time) {
	e.mu.Lock()
	var due []uint32
	for productID := range e.monitored {
		book := e.books[productID]
		if book.Phase() == core.IntradayAuction && !now.Before(book.AuctionEnd()) {
			due = append(due, productID)
		}
	}
	e.mu.Unlock()

	for _, productID := range due {
		e.mu.Lock()
		book := e.books[productID]
		restorePhase := e.globalPhase
		delete(e.monitored, productID)
		e.mu.Unlock()

		book.SetPhase(restorePhase)
	}
}

func (e *MatchingEngine) advanceGlobalPhase(now time.Time) {
	e.mu.Lock()
	phase := e.globalPhase
	auctionEnd := e.auctionEnd
	e.mu.Unlock()

	var next core.Phase
	var nextAuctionEnd time.Time
	transition := false

	switch phase {
	case core.Closed:
		if e.openWindow(now) {
			next, nextAuctionEnd, transition = core.OpeningAuction, now.Add(e.openingDuration), true
		}
	case core.OpeningAuction:
		if !now.Before(auctionEnd) {
			next, transition = core.ContinuousTrading, true
		}
	case core.ContinuousTrading:
		if !e.openWindow(now) {
			next, nextAuctionEnd, transition = core.ClosingAuction, now.Add(e.closingDuration), true
		}
	case core.ClosingAuction:
		if !now.Before(auctionEnd) {
			next, transition = core.Closed, true
		}
	}

	if !transition {
		return
	}

	e.mu.Lock()
	e.globalPhase = next
	e.auctionEnd = nextAuctionEnd
	books := make([]*core.OrderBook, 0, len(e.books))
	for _, book := range e.books {
		books = append(books, book)
	}
	// The loop below calls SetPhase(next) on every book unconditionally,
	// including ones still in e.monitored for their own INTRADAY_AUCTION —
	// that forces them out of INTRADAY_AUCTION into next regardless of what
	// next is, uncrossing them against the phase they are leaving first
	// (OrderBook.SetPhase's leaving-auction behavior). So no book is left
	// in INTRADAY_AUCTION once this transition applies, and e.monitored is
	// cleared unconditionally to keep invariant 5 (book ∈ monitored ⇔
	// phase == INTRADAY_AUCTION) true immediately rather than only when
	// next == CLOSED (the original's m_MonitoredOrderBook-empty assertion
	// before CancelAllOrders, per SPEC_FULL.md's supplemented features,
	// generalizes to every global transition, not just the one into
	// CLOSED).
	e.monitored = make(map[uint32]bool)
	e.mu.Unlock()

	for _, book := range books {
		book.SetPhase(next)
	}
}

// NotifyDeal implements core.BookObserver: records the deal metric and, if
// a deal sink is configured, forwards it as the outbound deal stream (§6).
func (e *MatchingEngine) NotifyDeal(deal core.Deal) {
	ctx := context.Background()
	engineotel.GetEngineMetrics().RecordDeal(ctx, deal.ProductID, deal.AuctionDeal)

	e.mu.Lock()
	sink := e.dealSink
	e.mu.Unlock()
	if sink == nil {
		return
	}

	msg := &messaging.DealMessage{
		ProductID:     deal.ProductID,
		Sequence:      deal.Sequence,
		Price:         deal.Price.String(),
		Quantity:      deal.Quantity.String(),
		MakerOrderID:  deal.MakerKey.OrderID,
		MakerClientID: deal.MakerKey.ClientID,
		TakerOrderID:  deal.TakerKey.OrderID,
		TakerClientID: deal.TakerKey.ClientID,
		MakerSide:     deal.MakerSide.String(),
		AuctionDeal:   deal.AuctionDeal,
	}
	if err := sink.SendDealMessage(msg); err != nil {
		e.logger().Error().Err(err).Uint32("product_id", deal.ProductID).Msg("failed to publish deal")
	}
}

// NotifyIntradayAuction implements core.BookObserver: registers productID
// as a monitored book so Tick restores it once its own auction_end passes.
func (e *MatchingEngine) NotifyIntradayAuction(productID uint32) {
	e.mu.Lock()
	e.monitored[productID] = true
	e.mu.Unlock()

	engineotel.GetEngineMetrics().RecordIntradayAuction(context.Background(), productID)
	e.logger().Info().Uint32("product_id", productID).Msg("book entered INTRADAY_AUCTION")
}

// NotifyUnsolicitedCancel implements core.BookObserver.
func (e *MatchingEngine) NotifyUnsolicitedCancel(order *core.Order) {
	e.logger().Info().
		Uint64("order_id", order.Key.OrderID).
		Uint64("client_id", order.Key.ClientID).
		Str("side", order.Side.String()).
		Msg("order cancelled unsolicited")
}

func (e *MatchingEngine) logger() *zerolog.Logger {
	l := logging.FromContext(context.Background())
	return &l
}
