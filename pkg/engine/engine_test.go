package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nikolaydubina/fpdecimal"

	"github.com/silvermoon-h/matching-engine-2/config"
	"github.com/silvermoon-h/matching-engine-2/pkg/core"
)

func writeInstrumentDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "instruments.yaml")
	yaml := `
instruments:
  - product_id: 1
    name: ACME
    currency: USD
    tick_size: 0.01
    lot_size: 1
    initial_reference_price: 100.0
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestEngine(t *testing.T) (*MatchingEngine, time.Time) {
	t.Helper()
	eng := New()
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	cfg := &config.EngineConfig{
		StartTime:               start,
		StopTime:                start.Add(8 * time.Hour),
		OpeningAuctionDuration:  time.Minute,
		ClosingAuctionDuration:  time.Minute,
		IntradayAuctionDuration: time.Minute,
		MaxPriceDeviation:       0.1,
		InstrumentDBPath:        writeInstrumentDB(t),
	}
	if err := eng.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return eng, start
}

func TestGlobalPhaseStateMachineFullDay(t *testing.T) {
	eng, start := newTestEngine(t)

	if got := eng.GlobalPhase(); got != core.Closed {
		t.Fatalf("initial phase = %s, want CLOSED", got)
	}

	eng.Tick(start)
	if got := eng.GlobalPhase(); got != core.OpeningAuction {
		t.Fatalf("phase at open = %s, want OPENING_AUCTION", got)
	}

	eng.Tick(start.Add(30 * time.Second))
	if got := eng.GlobalPhase(); got != core.OpeningAuction {
		t.Fatalf("phase mid-opening-auction = %s, want still OPENING_AUCTION", got)
	}

	eng.Tick(start.Add(time.Minute + time.Second))
	if got := eng.GlobalPhase(); got != core.ContinuousTrading {
		t.Fatalf("phase after opening auction = %s, want CONTINUOUS_TRADING", got)
	}

	stop := start.Add(8 * time.Hour)
	eng.Tick(stop)
	if got := eng.GlobalPhase(); got != core.ClosingAuction {
		t.Fatalf("phase at stop = %s, want CLOSING_AUCTION", got)
	}

	eng.Tick(stop.Add(time.Minute + time.Second))
	if got := eng.GlobalPhase(); got != core.Closed {
		t.Fatalf("phase after closing auction = %s, want CLOSED", got)
	}
}

func TestSetGlobalPhaseRejectsIntradayAuction(t *testing.T) {
	eng, _ := newTestEngine(t)
	err := eng.SetGlobalPhase(core.IntradayAuction)
	if err == nil {
		t.Fatal("expected error setting global phase to INTRADAY_AUCTION")
	}
	if _, ok := err.(*core.PhaseError); !ok {
		t.Fatalf("expected *core.PhaseError, got %T", err)
	}
}

func TestInsertUnknownInstrumentRejected(t *testing.T) {
	eng, start := newTestEngine(t)
	eng.SetGlobalPhase(core.ContinuousTrading)

	order := core.NewLimitOrder(core.OrderKey{ProductID: 99, OrderID: 1}, core.Buy, fpdecimal.FromFloat(100.0), fpdecimal.FromFloat(1.0))
	if err := eng.Insert(order, 99, start); err == nil {
		t.Fatal("expected error inserting into unknown instrument")
	}
}

func TestInsertMatchesAcrossContinuousTrading(t *testing.T) {
	eng, start := newTestEngine(t)
	eng.SetGlobalPhase(core.ContinuousTrading)

	sell := core.NewLimitOrder(core.OrderKey{ProductID: 1, OrderID: 1}, core.Sell, fpdecimal.FromFloat(100.0), fpdecimal.FromFloat(5.0))
	if err := eng.Insert(sell, 1, start); err != nil {
		t.Fatalf("Insert sell: %v", err)
	}

	buy := core.NewLimitOrder(core.OrderKey{ProductID: 1, OrderID: 2}, core.Buy, fpdecimal.FromFloat(100.0), fpdecimal.FromFloat(3.0))
	if err := eng.Insert(buy, 1, start); err != nil {
		t.Fatalf("Insert buy: %v", err)
	}
	if !buy.IsFilled() {
		t.Fatalf("expected buy to be fully filled, remaining %s", buy.Remaining)
	}
}

func TestDeviationBreachTripsIntradayAuctionAndTickRestoresIt(t *testing.T) {
	eng, start := newTestEngine(t)
	eng.SetGlobalPhase(core.ContinuousTrading)

	// Reference price is 100; 10% band is [90, 110]. 200 breaches it.
	order := core.NewLimitOrder(core.OrderKey{ProductID: 1, OrderID: 1}, core.Buy, fpdecimal.FromFloat(200.0), fpdecimal.FromFloat(1.0))
	if err := eng.Insert(order, 1, start); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	book := eng.books[1]
	if book.Phase() != core.IntradayAuction {
		t.Fatalf("book phase = %s, want INTRADAY_AUCTION", book.Phase())
	}

	eng.Tick(book.AuctionEnd().Add(time.Second))
	if book.Phase() != core.ContinuousTrading {
		t.Fatalf("book phase after tick past auction_end = %s, want CONTINUOUS_TRADING", book.Phase())
	}
}

func TestDeleteDispatchesToBook(t *testing.T) {
	eng, start := newTestEngine(t)
	eng.SetGlobalPhase(core.ContinuousTrading)

	key := core.OrderKey{ProductID: 1, OrderID: 1}
	order := core.NewLimitOrder(key, core.Buy, fpdecimal.FromFloat(99.0), fpdecimal.FromFloat(5.0))
	if err := eng.Insert(order, 1, start); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := eng.Delete(key, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := eng.Delete(key, 1); err == nil {
		t.Fatal("expected error deleting already-cancelled order")
	}
}
