package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/orderflow/orderflow/internal/order/domain"
)

// Service implements the order core: the factory that turns validated
// lines into a persisted order with reserved stock, and the state machine
// that governs what happens to the order afterwards.
type Service struct {
	log   *slog.Logger
	store Store
}

func NewService(log *slog.Logger, store Store) *Service {
	return &Service{log: log, store: store}
}

// CreateOrder reserves stock for every line and persists the order in one
// unit of work. Either every line's stock is decremented and the order
// exists in pending status, or nothing happened.
func (s *Service) CreateOrder(ctx context.Context, lines []Line) (domain.Order, error) {
	if len(lines) == 0 {
		return domain.Order{}, domain.ErrEmptyOrder
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return domain.Order{}, &domain.ErrInvalidQuantity{ProductID: l.ProductID, Quantity: l.Quantity}
		}
	}

	// A product referenced by several lines is locked and reserved once,
	// for the summed quantity.
	quantities := make(map[int64]int, len(lines))
	for _, l := range lines {
		quantities[l.ProductID] += l.Quantity
	}
	productIDs := make([]int64, 0, len(quantities))
	for id := range quantities {
		productIDs = append(productIDs, id)
	}
	// Fixed ascending lock order: concurrent orders sharing products
	// always acquire them in the same relative order, so no wait cycle
	// can form.
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	var created domain.Order
	err := s.store.WithinTx(ctx, func(uow UnitOfWork) error {
		prices := make(map[int64]decimal.Decimal, len(productIDs))
		for _, id := range productIDs {
			res, err := uow.Ledger().Reserve(ctx, id, quantities[id])
			if err != nil {
				return err
			}
			prices[id] = res.UnitPrice
		}

		items := make([]domain.OrderItem, 0, len(lines))
		for _, l := range lines {
			items = append(items, domain.OrderItem{
				ProductID:    l.ProductID,
				Quantity:     l.Quantity,
				PriceAtOrder: prices[l.ProductID],
			})
		}

		o, err := uow.Orders().Insert(ctx, domain.Order{Status: domain.StatusPending, Items: items})
		if err != nil {
			return err
		}

		if err := appendEvent(ctx, uow.Outbox(), o.ID, domain.EventOrderCreated, domain.OrderCreated{
			OrderID:   o.ID,
			Total:     o.Total(),
			Items:     lineEvents(o.Items),
			CreatedAt: o.CreatedAt,
		}); err != nil {
			return err
		}

		created = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order created", "order_id", created.ID, "lines", len(created.Items))
	return created, nil
}

// UpdateStatus applies one transition of the order lifecycle. Cancelling a
// pending order releases every line's quantity back to its product in the
// same unit of work as the status write.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, target domain.Status) (domain.Order, error) {
	var updated domain.Order
	err := s.store.WithinTx(ctx, func(uow UnitOfWork) error {
		o, err := uow.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		o, err = o.Transition(target)
		if err != nil {
			return err
		}

		if target == domain.StatusCancelled {
			if err := s.releaseItems(ctx, uow, o); err != nil {
				return err
			}
		}

		if err := uow.Orders().UpdateStatus(ctx, orderID, target); err != nil {
			return err
		}

		eventType := domain.EventOrderShipped
		var payload any = domain.OrderShipped{OrderID: orderID}
		if target == domain.StatusCancelled {
			eventType = domain.EventOrderCancelled
			payload = domain.OrderCancelled{OrderID: orderID, Released: lineEvents(o.Items)}
		}
		if err := appendEvent(ctx, uow.Outbox(), orderID, eventType, payload); err != nil {
			return err
		}

		updated = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order status updated", "order_id", orderID, "status", target)
	return updated, nil
}

// GetOrder loads an order with its items.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// releaseItems returns each item's quantity to its product, touching
// products in the same ascending order creation used.
func (s *Service) releaseItems(ctx context.Context, uow UnitOfWork, o domain.Order) error {
	quantities := make(map[int64]int, len(o.Items))
	for _, item := range o.Items {
		quantities[item.ProductID] += item.Quantity
	}
	productIDs := make([]int64, 0, len(quantities))
	for id := range quantities {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	for _, id := range productIDs {
		if err := uow.Ledger().Release(ctx, id, quantities[id]); err != nil {
			return err
		}
	}
	return nil
}

func appendEvent(ctx context.Context, outbox OutboxAppender, orderID int64, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return outbox.Append(ctx, strconv.FormatInt(orderID, 10), eventType, data)
}

func lineEvents(items []domain.OrderItem) []domain.OrderLineEvent {
	events := make([]domain.OrderLineEvent, 0, len(items))
	for _, item := range items {
		events = append(events, domain.OrderLineEvent{
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			PriceAtOrder: item.PriceAtOrder,
		})
	}
	return events
}
