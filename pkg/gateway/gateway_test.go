package gateway

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/silvermoon-h/matching-engine-2/config"
	"github.com/silvermoon-h/matching-engine-2/pkg/core"
	"github.com/silvermoon-h/matching-engine-2/pkg/engine"
)

func discardLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestFrameRoundTrip(t *testing.T) {
	env := &Envelope{Kind: KindNewOrder, NewOrder: &NewOrderMessage{
		ProductID: 1,
		OrderID:   42,
		Side:      core.Buy,
		Type:      core.TypeLimit,
		Price:     "100.00",
		Quantity:  "5",
	}}

	var buf bytes.Buffer
	if err := writeFrame(&buf, env); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	got, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if got.Kind != KindNewOrder || got.NewOrder == nil {
		t.Fatalf("got envelope %+v, want a decoded NewOrder", got)
	}
	if got.NewOrder.OrderID != 42 || got.NewOrder.Price != "100.00" {
		t.Fatalf("got new order %+v, want OrderID=42 Price=100.00", got.NewOrder)
	}
}

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	eng := engine.New()
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	dir := t.TempDir()
	path := filepath.Join(dir, "instruments.yaml")
	yaml := "instruments:\n  - product_id: 1\n    name: ACME\n    currency: USD\n    tick_size: 0.01\n    lot_size: 1\n    initial_reference_price: 100.0\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.EngineConfig{
		StartTime:               start,
		StopTime:                start.Add(8 * time.Hour),
		OpeningAuctionDuration:  time.Minute,
		ClosingAuctionDuration:  time.Minute,
		IntradayAuctionDuration: time.Minute,
		MaxPriceDeviation:       0.1,
		InstrumentDBPath:        path,
	}
	if err := eng.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	eng.SetGlobalPhase(core.ContinuousTrading)

	return New(eng, func() time.Time { return start })
}

func TestDispatchNewOrderAck(t *testing.T) {
	gw := newTestGateway(t)
	var clientID uint64 = 7

	resp := gw.dispatch(&Envelope{Kind: KindNewOrder, NewOrder: &NewOrderMessage{
		ProductID: 1,
		OrderID:   1,
		Side:      core.Buy,
		Type:      core.TypeLimit,
		Price:     "100",
		Quantity:  "5",
	}}, &clientID, "session-1", discardLogger())

	if resp == nil || resp.Kind != KindAck {
		t.Fatalf("expected ack, got %+v", resp)
	}
}

func TestDispatchNewOrderRejectsUnknownInstrument(t *testing.T) {
	gw := newTestGateway(t)
	var clientID uint64 = 7

	resp := gw.dispatch(&Envelope{Kind: KindNewOrder, NewOrder: &NewOrderMessage{
		ProductID: 99,
		OrderID:   1,
		Side:      core.Buy,
		Type:      core.TypeLimit,
		Price:     "100",
		Quantity:  "5",
	}}, &clientID, "session-1", discardLogger())

	if resp == nil || resp.Kind != KindReject {
		t.Fatalf("expected reject, got %+v", resp)
	}
}

func TestDispatchLogonSetsClientID(t *testing.T) {
	gw := newTestGateway(t)
	var clientID uint64

	resp := gw.dispatch(&Envelope{Kind: KindLogon, Logon: &LogonMessage{ClientID: 55}}, &clientID, "session-1", discardLogger())
	if resp != nil {
		t.Fatalf("expected no response to logon, got %+v", resp)
	}
	if clientID != 55 {
		t.Fatalf("clientID = %d, want 55", clientID)
	}
}
