package orders

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/giftorder/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) CreateTx(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	return tx.QueryRowContext(ctx, `
		INSERT INTO orders (option_id, member_id, quantity, message, order_date_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, order.OptionID, order.MemberID, order.Quantity, order.Message, order.OrderDateTime).Scan(&order.ID)
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, option_id, member_id, quantity, message, order_date_time
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.OptionID, &order.MemberID, &order.Quantity, &order.Message, &order.OrderDateTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) ListByMember(ctx context.Context, memberID int64) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, option_id, member_id, quantity, message, order_date_time
		FROM orders
		WHERE member_id = $1
		ORDER BY order_date_time DESC, id DESC
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.OptionID, &order.MemberID, &order.Quantity, &order.Message, &order.OrderDateTime); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
