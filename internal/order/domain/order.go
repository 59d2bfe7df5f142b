package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID        int64
	Status    Status
	Items     []OrderItem
	CreatedAt time.Time
}

// OrderItem is one line of an order. PriceAtOrder is the product's unit
// price snapshotted while its stock row was locked during reservation; it
// never changes afterwards, regardless of later product price edits.
type OrderItem struct {
	ID           int64
	ProductID    int64
	Quantity     int
	PriceAtOrder decimal.Decimal
}

// Total sums quantity times snapshot price across all lines.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.PriceAtOrder.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
