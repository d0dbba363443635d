// Package otel's metrics.go mirrors the teacher's
// pkg/otel/order_metrics.go, renamed from order-book matching counters to
// this domain's deal/phase counters.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "matching-engine"

var (
	engineMetrics *EngineMetrics
	meter         = otel.GetMeterProvider().Meter(instrumentationName)
)

// EngineMetrics holds the counters the engine emits.
type EngineMetrics struct {
	dealsTotal           metric.Int64Counter
	rejectionsTotal      metric.Int64Counter
	intradayAuctionsTotal metric.Int64Counter
}

// GetEngineMetrics returns the EngineMetrics singleton, initializing it
// lazily against the currently registered global meter provider.
func GetEngineMetrics() *EngineMetrics {
	if engineMetrics != nil {
		return engineMetrics
	}

	dealsTotal, err1 := meter.Int64Counter("matching_engine.deals.total",
		metric.WithDescription("Total number of deals committed"), metric.WithUnit("{deal}"))
	rejectionsTotal, err2 := meter.Int64Counter("matching_engine.rejections.total",
		metric.WithDescription("Total number of order operations rejected"), metric.WithUnit("{rejection}"))
	intradayAuctionsTotal, err3 := meter.Int64Counter("matching_engine.intraday_auctions.total",
		metric.WithDescription("Total number of books tripped into INTRADAY_AUCTION"), metric.WithUnit("{auction}"))
	if err1 != nil || err2 != nil || err3 != nil {
		return &EngineMetrics{}
	}

	engineMetrics = &EngineMetrics{
		dealsTotal:            dealsTotal,
		rejectionsTotal:       rejectionsTotal,
		intradayAuctionsTotal: intradayAuctionsTotal,
	}
	return engineMetrics
}

// RecordDeal increments the deal counter for productID.
func (m *EngineMetrics) RecordDeal(ctx context.Context, productID uint32, auction bool) {
	if m.dealsTotal == nil {
		return
	}
	m.dealsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("product_id", int(productID)),
		attribute.Bool("auction_deal", auction),
	))
}

// RecordRejection increments the rejection counter for op.
func (m *EngineMetrics) RecordRejection(ctx context.Context, op string) {
	if m.rejectionsTotal == nil {
		return
	}
	m.rejectionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

// RecordIntradayAuction increments the intraday-auction counter for productID.
func (m *EngineMetrics) RecordIntradayAuction(ctx context.Context, productID uint32) {
	if m.intradayAuctionsTotal == nil {
		return
	}
	m.intradayAuctionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("product_id", int(productID))))
}
