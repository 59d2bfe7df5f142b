package application

import (
	"context"

	inventory "github.com/orderflow/orderflow/internal/inventory/domain"
	"github.com/orderflow/orderflow/internal/order/domain"
)

// Line is one requested (product, quantity) pair of a create-order call.
type Line struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Store opens all-or-nothing units of work against the persisted state.
// Everything mutated inside fn commits together or not at all; on error
// every mutation is discarded, including stock decrements already applied
// through the ledger.
type Store interface {
	WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error

	// GetOrder reads an order with its items outside any unit of work.
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
}

// UnitOfWork is the transactional view handed to the service. The ledger
// and repository share the same transaction, so a stock reservation and
// the order row it backs are committed as one.
type UnitOfWork interface {
	Ledger() inventory.Ledger
	Orders() OrderRepository
	Outbox() OutboxAppender
}

type OrderRepository interface {
	// Insert persists the order and its items, assigning identities and
	// the creation timestamp.
	Insert(ctx context.Context, o domain.Order) (domain.Order, error)

	// GetForUpdate loads the order with its items and holds exclusive
	// access to the order row until the unit of work ends, so concurrent
	// status updates on the same order serialize.
	GetForUpdate(ctx context.Context, id int64) (domain.Order, error)

	UpdateStatus(ctx context.Context, id int64, status domain.Status) error
}

// OutboxAppender records a lifecycle event in the same unit of work as the
// state change it describes; a relay publishes it after commit.
type OutboxAppender interface {
	Append(ctx context.Context, aggregateID string, eventType string, payload []byte) error
}
