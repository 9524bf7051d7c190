package order

import "github.com/shopspring/decimal"

// ComputeTotal returns the sum of price × quantity over items, zero for none.
// Values are not validated here; negative inputs yield a negative total.
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}
