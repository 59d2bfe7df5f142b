package domain

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Reservation is the result of a successful stock reserve: the unit price
// captured while the product row was locked, and the stock remaining after
// the decrement. The price travels into the order line so it is never
// re-read outside the lock.
type Reservation struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Remaining int
}

// Ledger serializes all mutations of product stock. Both operations run
// inside the caller's unit of work and hold exclusive access to the product
// row until it commits or rolls back.
type Ledger interface {
	// Reserve decrements stock by qty (qty > 0). It fails with
	// *ErrInsufficientStock when qty exceeds the available quantity and
	// with product not-found when the id is unknown; stock never goes
	// negative.
	Reserve(ctx context.Context, productID int64, qty int) (Reservation, error)

	// Release adds qty back to stock. It compensates a prior Reserve and
	// does not fail on valid input.
	Release(ctx context.Context, productID int64, qty int) error
}

// ErrInsufficientStock reports a reserve that would drive stock negative.
type ErrInsufficientStock struct {
	ProductID int64
	Available int
	Requested int
}

func (e *ErrInsufficientStock) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}
