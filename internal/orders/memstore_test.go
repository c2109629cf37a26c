package orders

import (
	"context"
	"sort"
	"sync"

	"github.com/joao-fontenele/giftorder/internal/domain"
)

// memStore is a transactional in-memory Store. Transactions are serialized
// by a single mutex and work on copies that are only published on success.
type memStore struct {
	mu        sync.Mutex
	options   map[int64]domain.Option
	members   map[int64]domain.Member
	orders    []domain.Order
	nextID    int64
	txCount   int
	createErr error
}

func newMemStore() *memStore {
	return &memStore{
		options: make(map[int64]domain.Option),
		members: make(map[int64]domain.Member),
	}
}

func (s *memStore) addOption(opt domain.Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options[opt.ID] = opt
}

func (s *memStore) addMember(m domain.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *memStore) option(id int64) domain.Option {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options[id]
}

func (s *memStore) member(id int64) domain.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[id]
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	tx := &memTx{
		store:   s,
		options: make(map[int64]domain.Option, len(s.options)),
		members: make(map[int64]domain.Member, len(s.members)),
		nextID:  s.nextID,
	}
	for id, opt := range s.options {
		tx.options[id] = opt
	}
	for id, m := range s.members {
		tx.members[id] = m
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.options = tx.options
	s.members = tx.members
	s.orders = append(s.orders, tx.created...)
	s.nextID = tx.nextID
	return nil
}

func (s *memStore) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			order := o
			return &order, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListByMember(_ context.Context, memberID int64) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Order{}
	for _, o := range s.orders {
		if o.MemberID == memberID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memTx struct {
	store   *memStore
	options map[int64]domain.Option
	members map[int64]domain.Member
	created []domain.Order
	nextID  int64
}

func (t *memTx) LockOption(_ context.Context, id int64) (*domain.Option, error) {
	opt, ok := t.options[id]
	if !ok {
		return nil, nil
	}
	return &opt, nil
}

func (t *memTx) LockMember(_ context.Context, id int64) (*domain.Member, error) {
	m, ok := t.members[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (t *memTx) DebitStock(_ context.Context, id int64, quantity int) error {
	opt := t.options[id]
	if opt.Quantity < quantity {
		return ErrInsufficientStock
	}
	opt.Quantity -= quantity
	t.options[id] = opt
	return nil
}

func (t *memTx) DebitPoint(_ context.Context, id int64, amount int64) error {
	m := t.members[id]
	if m.Point < amount {
		return ErrInsufficientPoint
	}
	m.Point -= amount
	t.members[id] = m
	return nil
}

func (t *memTx) CreateOrder(_ context.Context, order *domain.Order) error {
	if t.store.createErr != nil {
		return t.store.createErr
	}
	t.nextID++
	order.ID = t.nextID
	t.created = append(t.created, *order)
	return nil
}
