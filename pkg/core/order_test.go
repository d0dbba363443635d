package core

import (
	"testing"

	"github.com/nikolaydubina/fpdecimal"
)

func TestSideString(t *testing.T) {
	tests := []struct {
		name string
		side Side
		want string
	}{
		{"Buy", Buy, "BUY"},
		{"Sell", Sell, "SELL"},
		{"Invalid", Side(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.side.String(); got != tt.want {
				t.Errorf("Side.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSideOpposite(t *testing.T) {
	if Buy.Opposite() != Sell {
		t.Errorf("Buy.Opposite() = %v, want Sell", Buy.Opposite())
	}
	if Sell.Opposite() != Buy {
		t.Errorf("Sell.Opposite() = %v, want Buy", Sell.Opposite())
	}
}

func TestNewMarketOrder(t *testing.T) {
	key := OrderKey{ProductID: 1, OrderID: 42}
	quantity := fpdecimal.FromFloat(10.5)

	order := NewMarketOrder(key, Buy, quantity)

	if order.Key != key {
		t.Errorf("Expected key %v, got %v", key, order.Key)
	}
	if order.Side != Buy {
		t.Errorf("Expected Side Buy, got %v", order.Side)
	}
	if !order.Quantity.Equal(quantity) {
		t.Errorf("Expected Quantity %v, got %v", quantity, order.Quantity)
	}
	if !order.Remaining.Equal(quantity) {
		t.Errorf("Expected Remaining %v, got %v", quantity, order.Remaining)
	}
	if !order.Price.Equal(fpdecimal.Zero) {
		t.Errorf("Expected Price 0, got %v", order.Price)
	}
	if order.Type != TypeMarket {
		t.Errorf("Expected TypeMarket, got %v", order.Type)
	}
}

func TestNewLimitOrder(t *testing.T) {
	key := OrderKey{ProductID: 1, OrderID: 43}
	quantity := fpdecimal.FromFloat(10.5)
	price := fpdecimal.FromFloat(100.0)

	order := NewLimitOrder(key, Sell, price, quantity)

	if order.Side != Sell {
		t.Errorf("Expected Side Sell, got %v", order.Side)
	}
	if !order.Price.Equal(price) {
		t.Errorf("Expected Price %v, got %v", price, order.Price)
	}
	if order.Type != TypeLimit {
		t.Error("Expected TypeLimit")
	}
}

func TestOrderIsFilled(t *testing.T) {
	key := OrderKey{ProductID: 1, OrderID: 44}
	order := NewLimitOrder(key, Buy, fpdecimal.FromFloat(100.0), fpdecimal.FromFloat(5.0))
	if order.IsFilled() {
		t.Error("fresh order should not be filled")
	}
	order.Remaining = fpdecimal.Zero
	if !order.IsFilled() {
		t.Error("zero-remaining order should be filled")
	}
}

func TestOrderReplaceLosesPriority(t *testing.T) {
	key := OrderKey{ProductID: 1, OrderID: 45}
	existing := NewLimitOrder(key, Buy, fpdecimal.FromFloat(100.0), fpdecimal.FromFloat(10.0))

	sameTerms := &OrderReplace{Key: key, NewPrice: fpdecimal.FromFloat(100.0), NewQuantity: fpdecimal.FromFloat(4.0)}
	if sameTerms.LosesPriority(existing) {
		t.Error("quantity decrease at the same price should keep priority")
	}

	biggerQty := &OrderReplace{Key: key, NewPrice: fpdecimal.FromFloat(100.0), NewQuantity: fpdecimal.FromFloat(20.0)}
	if !biggerQty.LosesPriority(existing) {
		t.Error("quantity increase should lose priority")
	}

	newPrice := &OrderReplace{Key: key, NewPrice: fpdecimal.FromFloat(101.0), NewQuantity: fpdecimal.FromFloat(4.0)}
	if !newPrice.LosesPriority(existing) {
		t.Error("price change should lose priority")
	}
}
