package order_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/order"
)

func item(price string, qty int) order.OrderItem {
	return order.OrderItem{Price: decimal.RequireFromString(price), Quantity: qty}
}

func TestComputeTotal(t *testing.T) {
	tests := []struct {
		name  string
		items []order.OrderItem
		want  string
	}{
		{name: "nil items", items: nil, want: "0"},
		{name: "empty items", items: []order.OrderItem{}, want: "0"},
		{name: "single item", items: []order.OrderItem{item("10.0", 1)}, want: "10"},
		{name: "two items", items: []order.OrderItem{item("10.0", 2), item("5.0", 3)}, want: "35"},
		{name: "cents do not drift", items: []order.OrderItem{item("0.1", 3), item("19.99", 3)}, want: "60.27"},
		{name: "zero quantity", items: []order.OrderItem{item("12.50", 0), item("1.25", 2)}, want: "2.5"},
		{name: "negative price propagates", items: []order.OrderItem{item("-4", 2), item("3", 1)}, want: "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := order.ComputeTotal(tt.items)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestComputeTotal_Deterministic(t *testing.T) {
	items := []order.OrderItem{item("10.0", 2), item("5.0", 3)}

	first := order.ComputeTotal(items)
	second := order.ComputeTotal(items)

	assert.True(t, first.Equal(second))
	assert.Equal(t, "10", items[0].Price.String(), "items must not be modified")
}

func TestOrderItem_LineTotal(t *testing.T) {
	assert.True(t, decimal.RequireFromString("7.5").Equal(item("2.5", 3).LineTotal()))
}
