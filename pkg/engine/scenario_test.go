package engine

import (
	"testing"
	"time"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silvermoon-h/matching-engine-2/pkg/core"
)

// TestFullDayLifecycleScenario walks the engine through the seed end-to-end
// scenario from the specification: CLOSED -> OPENING_AUCTION (orders queue
// and uncross) -> CONTINUOUS_TRADING (price-time priority matching) ->
// CLOSING_AUCTION -> CLOSED, using testify assertions for the bulk of the
// scenario's checks, in the style of the teacher's integration suite.
func TestFullDayLifecycleScenario(t *testing.T) {
	eng, start := newTestEngine(t)

	eng.Tick(start)
	require.Equal(t, core.OpeningAuction, eng.GlobalPhase())

	buy := core.NewLimitOrder(core.OrderKey{ProductID: 1, OrderID: 1}, core.Buy, fpdecimal.FromFloat(101.0), fpdecimal.FromFloat(10.0))
	sell := core.NewLimitOrder(core.OrderKey{ProductID: 1, OrderID: 2}, core.Sell, fpdecimal.FromFloat(99.0), fpdecimal.FromFloat(8.0))
	require.NoError(t, eng.Insert(buy, 1, start))
	require.NoError(t, eng.Insert(sell, 1, start))

	// Both orders queue during the auction; neither has matched yet.
	assert.False(t, buy.IsFilled())
	assert.False(t, sell.IsFilled())

	// Auction closes, uncrossing at the opening auction's clearing price.
	eng.Tick(start.Add(time.Minute + time.Second))
	require.Equal(t, core.ContinuousTrading, eng.GlobalPhase())
	assert.True(t, sell.IsFilled(), "sell should have fully uncrossed against the larger buy")
	assert.Equal(t, fpdecimal.FromFloat(2.0).String(), buy.Remaining.String())

	// Continuous trading: a third order crosses immediately against the
	// remaining resting buy.
	secondSell := core.NewLimitOrder(core.OrderKey{ProductID: 1, OrderID: 3}, core.Sell, fpdecimal.FromFloat(101.0), fpdecimal.FromFloat(2.0))
	require.NoError(t, eng.Insert(secondSell, 1, start.Add(time.Minute+2*time.Second)))
	assert.True(t, secondSell.IsFilled())
	assert.True(t, buy.IsFilled())

	stop := start.Add(8 * time.Hour)
	eng.Tick(stop)
	require.Equal(t, core.ClosingAuction, eng.GlobalPhase())

	eng.Tick(stop.Add(time.Minute + time.Second))
	require.Equal(t, core.Closed, eng.GlobalPhase())
}
