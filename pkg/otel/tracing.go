// Package otel's tracing.go mirrors the teacher's pkg/otel/order_tracing.go:
// named spans plus attribute-key constants, renamed to this domain's
// operations — insert/modify/delete/tick/uncross — in place of the
// teacher's order-lifecycle spans.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	SpanInsert  = "book.insert"
	SpanModify  = "book.modify"
	SpanDelete  = "book.delete"
	SpanUncross = "book.uncross"
	SpanTick    = "engine.tick"

	AttributeProductID  = "product_id"
	AttributeOrderID    = "order.id"
	AttributeClientID   = "order.client_id"
	AttributeOrderSide  = "order.side"
	AttributeOrderType  = "order.type"
	AttributeDealCount  = "deal.count"
	AttributePhase      = "book.phase"
)

// StartSpan starts a span under the engine's tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}
