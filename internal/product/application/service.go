package application

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/orderflow/orderflow/internal/product/domain"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Service struct {
	log  *slog.Logger
	repo ProductRepository
}

func NewService(log *slog.Logger, repo ProductRepository) *Service {
	return &Service{log: log, repo: repo}
}

func (s *Service) CreateProduct(ctx context.Context, name string, price decimal.Decimal, stock int) (domain.Product, error) {
	p, err := domain.NewProduct(name, price, stock)
	if err != nil {
		return domain.Product{}, err
	}
	p, err = s.repo.Insert(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	s.log.Info("product created", "product_id", p.ID, "name", p.Name)
	return p, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return s.repo.Get(ctx, id)
}

// ListProducts returns one page of products in id order plus the total
// count. skip below zero is clamped; limit outside [1, MaxPageSize] falls
// back to the defaults.
func (s *Service) ListProducts(ctx context.Context, skip, limit int) ([]domain.Product, int, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return s.repo.List(ctx, skip, limit)
}
