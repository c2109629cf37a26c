package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/joao-fontenele/giftorder/internal/domain"
	"github.com/joao-fontenele/giftorder/internal/member"
	"github.com/joao-fontenele/giftorder/internal/option"
	"github.com/joao-fontenele/giftorder/internal/postgres"
)

var _ Store = (*SQLStore)(nil)

// SQLStore runs placements as PostgreSQL transactions at READ COMMITTED.
// Rows are read with FOR UPDATE, so every check sees the latest committed
// value and concurrent debits of the same row are serialized.
type SQLStore struct {
	txm         *postgres.TxManager
	options     *option.Repository
	members     *member.Repository
	orders      *OrderRepository
	lockTimeout time.Duration
}

func NewSQLStore(txm *postgres.TxManager, options *option.Repository, members *member.Repository, orders *OrderRepository, lockTimeout time.Duration) *SQLStore {
	return &SQLStore{
		txm:         txm,
		options:     options,
		members:     members,
		orders:      orders,
		lockTimeout: lockTimeout,
	}
}

func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	opts := &postgres.TxOptions{
		Isolation:   sql.LevelReadCommitted,
		LockTimeout: s.lockTimeout,
	}
	return s.txm.WithTransactionOptions(ctx, opts, func(tx *sql.Tx) error {
		return fn(&sqlTx{tx: tx, store: s})
	})
}

type sqlTx struct {
	tx    *sql.Tx
	store *SQLStore
}

func (t *sqlTx) LockOption(ctx context.Context, optionID int64) (*domain.Option, error) {
	return t.store.options.FindByIDForUpdateTx(ctx, t.tx, optionID)
}

func (t *sqlTx) LockMember(ctx context.Context, memberID int64) (*domain.Member, error) {
	return t.store.members.FindByIDForUpdateTx(ctx, t.tx, memberID)
}

func (t *sqlTx) DebitStock(ctx context.Context, optionID int64, quantity int) error {
	err := t.store.options.DebitStockTx(ctx, t.tx, optionID, quantity)
	if errors.Is(err, option.ErrInsufficientStock) {
		return ErrInsufficientStock
	}
	return err
}

func (t *sqlTx) DebitPoint(ctx context.Context, memberID int64, amount int64) error {
	err := t.store.members.DebitPointTx(ctx, t.tx, memberID, amount)
	if errors.Is(err, member.ErrInsufficientPoint) {
		return ErrInsufficientPoint
	}
	return err
}

func (t *sqlTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	return t.store.orders.CreateTx(ctx, t.tx, order)
}
