package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The check on stock_quantity is the last-resort guard: even a bug that
// slips past the ledger cannot commit negative stock.
const schema = `
CREATE TABLE IF NOT EXISTS products (
	id             BIGSERIAL PRIMARY KEY,
	name           TEXT NOT NULL,
	price          NUMERIC(10,2) NOT NULL,
	stock_quantity INTEGER NOT NULL DEFAULT 0,
	CONSTRAINT check_stock_non_negative CHECK (stock_quantity >= 0)
);

CREATE TABLE IF NOT EXISTS orders (
	id         BIGSERIAL PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS order_items (
	id             BIGSERIAL PRIMARY KEY,
	order_id       BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	product_id     BIGINT NOT NULL REFERENCES products(id),
	quantity       INTEGER NOT NULL,
	price_at_order NUMERIC(10,2) NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_order_items_order_id ON order_items(order_id);
CREATE INDEX IF NOT EXISTS ix_order_items_product_id ON order_items(product_id);

CREATE TABLE IF NOT EXISTS outbox (
	id          BIGSERIAL PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	type        TEXT NOT NULL,
	payload     JSONB NOT NULL,
	traceparent TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	relay_id    TEXT,
	lease_until TIMESTAMPTZ,
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the tables on startup when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
