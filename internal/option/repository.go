package option

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/giftorder/internal/domain"
)

var ErrInsufficientStock = errors.New("insufficient stock")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.Option, error) {
	opt := &domain.Option{}

	err := r.db.QueryRowContext(ctx, `
		SELECT o.id, o.product_id, o.name, o.quantity, p.price
		FROM options o
		JOIN products p ON p.id = o.product_id
		WHERE o.id = $1
	`, id).Scan(&opt.ID, &opt.ProductID, &opt.Name, &opt.Quantity, &opt.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return opt, nil
}

func (r *Repository) ListByProduct(ctx context.Context, productID int64) ([]domain.Option, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.product_id, o.name, o.quantity, p.price
		FROM options o
		JOIN products p ON p.id = o.product_id
		WHERE o.product_id = $1
		ORDER BY o.id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	options := []domain.Option{}
	for rows.Next() {
		var opt domain.Option
		if err := rows.Scan(&opt.ID, &opt.ProductID, &opt.Name, &opt.Quantity, &opt.Price); err != nil {
			return nil, err
		}
		options = append(options, opt)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return options, nil
}

// FindByIDForUpdateTx loads the option and holds its row lock until tx ends.
// Only the option row is locked; the product row is read without a lock.
func (r *Repository) FindByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id int64) (*domain.Option, error) {
	opt := &domain.Option{}

	err := tx.QueryRowContext(ctx, `
		SELECT o.id, o.product_id, o.name, o.quantity, p.price
		FROM options o
		JOIN products p ON p.id = o.product_id
		WHERE o.id = $1
		FOR UPDATE OF o
	`, id).Scan(&opt.ID, &opt.ProductID, &opt.Name, &opt.Quantity, &opt.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return opt, nil
}

func (r *Repository) DebitStockTx(ctx context.Context, tx *sql.Tx, id int64, quantity int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE options
		SET quantity = quantity - $2
		WHERE id = $1 AND quantity >= $2
	`, id, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrInsufficientStock
	}

	return nil
}
