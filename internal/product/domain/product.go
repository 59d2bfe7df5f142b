package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is an inventory item. Stock is mutated only through the stock
// ledger (reserve/release); the price is read by callers but snapshotted
// into order lines at creation time.
type Product struct {
	ID            int64
	Name          string
	Price         decimal.Decimal
	StockQuantity int
}

var (
	ErrNameRequired  = errors.New("product name must not be empty")
	ErrPriceInvalid  = errors.New("product price must be positive")
	ErrStockNegative = errors.New("initial stock must not be negative")
)

// ErrNotFound reports a lookup of a product id that does not exist.
type ErrNotFound struct {
	ProductID int64
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func NewProduct(name string, price decimal.Decimal, stock int) (Product, error) {
	if name == "" {
		return Product{}, ErrNameRequired
	}
	if !price.IsPositive() {
		return Product{}, ErrPriceInvalid
	}
	if stock < 0 {
		return Product{}, ErrStockNegative
	}
	return Product{Name: name, Price: price, StockQuantity: stock}, nil
}
