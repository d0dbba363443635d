// Command benchmark drives the matching engine in-process with synthetic
// order flow and reports Insert latency percentiles, grounded in the
// teacher's cmd/loadtest/main.go (worker pool + rate limiter + summary
// printout) but measuring the engine directly rather than over a gRPC
// connection, since this benchmark is about matching-algorithm latency,
// not gateway/network latency.
package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/nikolaydubina/fpdecimal"

	"github.com/silvermoon-h/matching-engine-2/config"
	"github.com/silvermoon-h/matching-engine-2/pkg/core"
	"github.com/silvermoon-h/matching-engine-2/pkg/engine"
)

func main() {
	numOrders := flag.Int("orders", 100000, "number of orders to submit")
	productID := flag.Uint("product-id", 1, "instrument to trade against")
	flag.Parse()

	dbPath, cleanup := writeBenchmarkInstrumentDB()
	defer cleanup()

	eng := engine.New()
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	cfg := &config.EngineConfig{
		StartTime:               start,
		StopTime:                start.Add(8 * time.Hour),
		OpeningAuctionDuration:  time.Second,
		ClosingAuctionDuration:  time.Second,
		IntradayAuctionDuration: time.Second,
		MaxPriceDeviation:       1.0,
		InstrumentDBPath:        dbPath,
	}
	if err := eng.Configure(cfg); err != nil {
		log.Fatalf("failed to configure engine: %v", err)
	}
	if err := eng.SetGlobalPhase(core.ContinuousTrading); err != nil {
		log.Fatalf("failed to open continuous trading: %v", err)
	}

	histogram := hdrhistogram.New(1, 10_000_000, 3)
	r := rand.New(rand.NewSource(1))
	pid := uint32(*productID)

	log.Printf("submitting %d orders against product %d", *numOrders, pid)
	benchStart := time.Now()

	for i := 0; i < *numOrders; i++ {
		order := randomOrder(r, pid, uint64(i))

		t0 := time.Now()
		_ = eng.Insert(order, pid, start)
		elapsedMicros := time.Since(t0).Microseconds()
		if elapsedMicros == 0 {
			elapsedMicros = 1
		}
		if err := histogram.RecordValue(elapsedMicros); err != nil {
			log.Printf("failed to record latency sample: %v", err)
		}
	}

	duration := time.Since(benchStart)
	log.Printf("completed %d orders in %v (%.0f orders/sec)", *numOrders, duration, float64(*numOrders)/duration.Seconds())
	log.Printf("insert latency (microseconds): p50=%d p90=%d p99=%d p99.9=%d max=%d",
		histogram.ValueAtQuantile(50),
		histogram.ValueAtQuantile(90),
		histogram.ValueAtQuantile(99),
		histogram.ValueAtQuantile(99.9),
		histogram.Max(),
	)
}

func randomOrder(r *rand.Rand, productID uint32, orderID uint64) *core.Order {
	side := core.Buy
	if r.Float64() < 0.5 {
		side = core.Sell
	}
	key := core.OrderKey{ProductID: productID, OrderID: orderID, ClientID: orderID % 100, Side: side}

	price := 95 + r.Float64()*10 // clusters around the 100.0 reference price
	quantity := 1 + r.Float64()*9

	return core.NewLimitOrder(key, side, fpdecimal.FromFloat(roundTo2(price)), fpdecimal.FromFloat(roundTo2(quantity)))
}

func roundTo2(v float64) float64 {
	return float64(int(v*100)) / 100
}

func writeBenchmarkInstrumentDB() (string, func()) {
	dir, err := os.MkdirTemp("", "matching-engine-benchmark")
	if err != nil {
		log.Fatalf("failed to create temp dir: %v", err)
	}
	path := filepath.Join(dir, "instruments.yaml")
	yaml := "instruments:\n  - product_id: 1\n    name: BENCH\n    currency: USD\n    tick_size: 0.01\n    lot_size: 1\n    initial_reference_price: 100.0\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		log.Fatalf("failed to write instrument database: %v", err)
	}
	return path, func() { os.RemoveAll(dir) }
}
