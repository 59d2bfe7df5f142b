package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyOrder rejects a create request with no lines.
	ErrEmptyOrder = errors.New("order must contain at least one item")

	// ErrLockTimeout reports that a stock row could not be locked within
	// the configured bound. No partial effect is committed; callers may
	// retry.
	ErrLockTimeout = errors.New("timed out waiting for stock lock")
)

// ErrInvalidQuantity rejects an order line whose quantity is not positive.
type ErrInvalidQuantity struct {
	ProductID int64
	Quantity  int
}

func (e *ErrInvalidQuantity) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %d: must be positive", e.Quantity, e.ProductID)
}

// ErrNotFound reports a lookup of an order id that does not exist.
type ErrNotFound struct {
	OrderID int64
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("order %d not found", e.OrderID)
}

// ErrInvalidTransition reports a status change the lifecycle does not
// permit. The order is left untouched.
type ErrInvalidTransition struct {
	From Status
	To   Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot transition order from %q to %q", e.From, e.To)
}
