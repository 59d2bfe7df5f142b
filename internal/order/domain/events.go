package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderShipped   = "OrderShipped"
	EventOrderCancelled = "OrderCancelled"
)

type OrderCreated struct {
	OrderID   int64            `json:"order_id"`
	Total     decimal.Decimal  `json:"total"`
	Items     []OrderLineEvent `json:"items"`
	CreatedAt time.Time        `json:"created_at"`
}

type OrderLineEvent struct {
	ProductID    int64           `json:"product_id"`
	Quantity     int             `json:"quantity"`
	PriceAtOrder decimal.Decimal `json:"price_at_order"`
}

type OrderShipped struct {
	OrderID int64 `json:"order_id"`
}

type OrderCancelled struct {
	OrderID  int64            `json:"order_id"`
	Released []OrderLineEvent `json:"released"`
}
