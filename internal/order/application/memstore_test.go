package application

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	inventory "github.com/orderflow/orderflow/internal/inventory/domain"
	"github.com/orderflow/orderflow/internal/order/domain"
	productdomain "github.com/orderflow/orderflow/internal/product/domain"
)

// memStore is an in-memory Store with the same contract as the postgres
// implementation: per-row exclusive locks held for the duration of a unit
// of work, bounded lock waits, and rollback of every mutation on error.
// It exists so the factory and state-machine tests can exercise real
// concurrency without a database.
type memStore struct {
	mu       sync.Mutex
	products map[int64]*memProduct
	orders   map[int64]*memOrder
	events   []memEvent

	nextOrderID int64
	nextItemID  int64
	lockWait    time.Duration
}

type memProduct struct {
	lock  chan struct{}
	price decimal.Decimal
	stock int
}

type memOrder struct {
	lock  chan struct{}
	order domain.Order
}

type memEvent struct {
	aggregateID string
	eventType   string
	payload     []byte
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[int64]*memProduct),
		orders:   make(map[int64]*memOrder),
		lockWait: time.Second,
	}
}

func (s *memStore) addProduct(id int64, price string, stock int) {
	lock := make(chan struct{}, 1)
	lock <- struct{}{}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = &memProduct{lock: lock, price: decimal.RequireFromString(price), stock: stock}
}

func (s *memStore) setPrice(id int64, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id].price = decimal.RequireFromString(price)
}

func (s *memStore) stockOf(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].stock
}

func (s *memStore) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.eventType)
	}
	return types
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	tx := &memTx{store: s}
	defer tx.releaseLocks()

	if err := fn(&memUow{tx: tx}); err != nil {
		tx.rollback()
		return err
	}
	tx.commit()
	return nil
}

func (s *memStore) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mo, ok := s.orders[id]
	if !ok {
		return domain.Order{}, &domain.ErrNotFound{OrderID: id}
	}
	return cloneOrder(mo.order), nil
}

// memTx journals undo actions so a failed unit of work leaves no trace.
type memTx struct {
	store  *memStore
	held   []chan struct{}
	undo   []func()
	events []memEvent
}

func (t *memTx) acquire(lock chan struct{}) error {
	select {
	case <-lock:
		t.held = append(t.held, lock)
		return nil
	case <-time.After(t.store.lockWait):
		return domain.ErrLockTimeout
	}
}

func (t *memTx) releaseLocks() {
	for _, lock := range t.held {
		lock <- struct{}{}
	}
	t.held = nil
}

func (t *memTx) rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.events = nil
}

func (t *memTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.events = append(t.store.events, t.events...)
	t.undo = nil
	t.events = nil
}

type memUow struct {
	tx *memTx
}

func (u *memUow) Ledger() inventory.Ledger { return &memLedger{tx: u.tx} }
func (u *memUow) Orders() OrderRepository  { return &memOrders{tx: u.tx} }
func (u *memUow) Outbox() OutboxAppender   { return &memOutbox{tx: u.tx} }

type memLedger struct {
	tx *memTx
}

func (l *memLedger) Reserve(ctx context.Context, productID int64, qty int) (inventory.Reservation, error) {
	s := l.tx.store
	s.mu.Lock()
	p, ok := s.products[productID]
	s.mu.Unlock()
	if !ok {
		return inventory.Reservation{}, &productdomain.ErrNotFound{ProductID: productID}
	}

	if err := l.tx.acquire(p.lock); err != nil {
		return inventory.Reservation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p.stock < qty {
		return inventory.Reservation{}, &inventory.ErrInsufficientStock{
			ProductID: productID,
			Available: p.stock,
			Requested: qty,
		}
	}
	p.stock -= qty
	l.tx.undo = append(l.tx.undo, func() { p.stock += qty })
	return inventory.Reservation{
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: p.price,
		Remaining: p.stock,
	}, nil
}

func (l *memLedger) Release(ctx context.Context, productID int64, qty int) error {
	s := l.tx.store
	s.mu.Lock()
	p, ok := s.products[productID]
	s.mu.Unlock()
	if !ok {
		return &productdomain.ErrNotFound{ProductID: productID}
	}

	if err := l.tx.acquire(p.lock); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p.stock += qty
	l.tx.undo = append(l.tx.undo, func() { p.stock -= qty })
	return nil
}

type memOrders struct {
	tx *memTx
}

func (r *memOrders) Insert(ctx context.Context, o domain.Order) (domain.Order, error) {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOrderID++
	o.ID = s.nextOrderID
	o.CreatedAt = time.Now().UTC()
	for i := range o.Items {
		s.nextItemID++
		o.Items[i].ID = s.nextItemID
	}

	lock := make(chan struct{}, 1)
	lock <- struct{}{}
	s.orders[o.ID] = &memOrder{lock: lock, order: cloneOrder(o)}
	id := o.ID
	r.tx.undo = append(r.tx.undo, func() { delete(s.orders, id) })
	return o, nil
}

func (r *memOrders) GetForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	s := r.tx.store
	s.mu.Lock()
	mo, ok := s.orders[id]
	s.mu.Unlock()
	if !ok {
		return domain.Order{}, &domain.ErrNotFound{OrderID: id}
	}

	if err := r.tx.acquire(mo.lock); err != nil {
		return domain.Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrder(mo.order), nil
}

func (r *memOrders) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	mo, ok := s.orders[id]
	if !ok {
		return &domain.ErrNotFound{OrderID: id}
	}
	prev := mo.order.Status
	mo.order.Status = status
	r.tx.undo = append(r.tx.undo, func() { mo.order.Status = prev })
	return nil
}

type memOutbox struct {
	tx *memTx
}

func (a *memOutbox) Append(ctx context.Context, aggregateID, eventType string, payload []byte) error {
	a.tx.events = append(a.tx.events, memEvent{aggregateID: aggregateID, eventType: eventType, payload: payload})
	return nil
}

func cloneOrder(o domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}
