package application

import (
	"context"

	"github.com/orderflow/orderflow/internal/product/domain"
)

type ProductRepository interface {
	Insert(ctx context.Context, p domain.Product) (domain.Product, error)
	Get(ctx context.Context, id int64) (domain.Product, error)
	List(ctx context.Context, skip, limit int) ([]domain.Product, int, error)
}
