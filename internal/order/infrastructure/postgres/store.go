package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	inventory "github.com/orderflow/orderflow/internal/inventory/domain"
	"github.com/orderflow/orderflow/internal/order/application"
	"github.com/orderflow/orderflow/internal/order/domain"
	productdomain "github.com/orderflow/orderflow/internal/product/domain"
)

// pgLockNotAvailable is raised when lock_timeout expires while waiting on
// a row lock.
const pgLockNotAvailable = "55P03"

// Store runs order units of work on postgres. Row locks taken inside a
// transaction (SELECT ... FOR UPDATE) are held until commit or rollback,
// which is what makes reserve-then-insert all-or-nothing.
type Store struct {
	log         *slog.Logger
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	return &Store{log: log, pool: pool, lockTimeout: lockTimeout}
}

func (s *Store) WithinTx(ctx context.Context, fn func(uow application.UnitOfWork) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Bounded waiting on row locks; expiry surfaces as 55P03 and the
	// whole unit of work rolls back.
	if s.lockTimeout > 0 {
		_, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds()))
		if err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	if err := fn(&unitOfWork{tx: tx}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, created_at FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, &domain.ErrNotFound{OrderID: id}
	}
	if err != nil {
		return domain.Order{}, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, product_id, quantity, price_at_order FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.PriceAtOrder); err != nil {
			return domain.Order{}, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

// mapError translates lock-timeout failures into the retryable domain
// error; everything else passes through.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return domain.ErrLockTimeout
	}
	return err
}

type unitOfWork struct {
	tx pgx.Tx
}

func (u *unitOfWork) Ledger() inventory.Ledger            { return &ledger{tx: u.tx} }
func (u *unitOfWork) Orders() application.OrderRepository { return &orders{tx: u.tx} }
func (u *unitOfWork) Outbox() application.OutboxAppender  { return &outboxAppender{tx: u.tx} }

// ledger is the stock ledger over the enclosing transaction. Reserve locks
// the product row, so the price it returns is the price the order commits
// with.
type ledger struct {
	tx pgx.Tx
}

func (l *ledger) Reserve(ctx context.Context, productID int64, qty int) (inventory.Reservation, error) {
	if qty <= 0 {
		return inventory.Reservation{}, &domain.ErrInvalidQuantity{ProductID: productID, Quantity: qty}
	}

	var res inventory.Reservation
	var available int
	err := l.tx.QueryRow(ctx,
		`SELECT price, stock_quantity FROM products WHERE id = $1 FOR UPDATE`, productID).
		Scan(&res.UnitPrice, &available)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Reservation{}, &productdomain.ErrNotFound{ProductID: productID}
	}
	if err != nil {
		return inventory.Reservation{}, err
	}

	if available < qty {
		return inventory.Reservation{}, &inventory.ErrInsufficientStock{
			ProductID: productID,
			Available: available,
			Requested: qty,
		}
	}

	_, err = l.tx.Exec(ctx,
		`UPDATE products SET stock_quantity = stock_quantity - $2 WHERE id = $1`, productID, qty)
	if err != nil {
		return inventory.Reservation{}, err
	}

	res.ProductID = productID
	res.Quantity = qty
	res.Remaining = available - qty
	return res, nil
}

func (l *ledger) Release(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return &domain.ErrInvalidQuantity{ProductID: productID, Quantity: qty}
	}
	ct, err := l.tx.Exec(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + $2 WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &productdomain.ErrNotFound{ProductID: productID}
	}
	return nil
}

type orders struct {
	tx pgx.Tx
}

func (r *orders) Insert(ctx context.Context, o domain.Order) (domain.Order, error) {
	err := r.tx.QueryRow(ctx,
		`INSERT INTO orders (status) VALUES ($1) RETURNING id, created_at`, o.Status).
		Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return domain.Order{}, err
	}

	for i := range o.Items {
		item := &o.Items[i]
		err := r.tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, price_at_order)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			o.ID, item.ProductID, item.Quantity, item.PriceAtOrder).
			Scan(&item.ID)
		if err != nil {
			return domain.Order{}, err
		}
	}
	return o, nil
}

func (r *orders) GetForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	err := r.tx.QueryRow(ctx,
		`SELECT id, status, created_at FROM orders WHERE id = $1 FOR UPDATE`, id).
		Scan(&o.ID, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, &domain.ErrNotFound{OrderID: id}
	}
	if err != nil {
		return domain.Order{}, err
	}

	rows, err := r.tx.Query(ctx,
		`SELECT id, product_id, quantity, price_at_order FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.PriceAtOrder); err != nil {
			return domain.Order{}, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

func (r *orders) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	return err
}

type outboxAppender struct {
	tx pgx.Tx
}

func (a *outboxAppender) Append(ctx context.Context, aggregateID, eventType string, payload []byte) error {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	_, err := a.tx.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		 VALUES ('order', $1, $2, $3, $4, 'pending')`,
		aggregateID, eventType, payload, carrier["traceparent"])
	return err
}
