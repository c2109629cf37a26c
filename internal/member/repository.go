package member

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/giftorder/internal/domain"
)

var ErrInsufficientPoint = errors.New("insufficient point")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*domain.Member, error) {
	m := &domain.Member{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, point
		FROM members
		WHERE email = $1
	`, email).Scan(&m.ID, &m.Email, &m.Name, &m.Point)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return m, nil
}

// FindByIDForUpdateTx loads the member and holds its row lock until tx ends.
func (r *Repository) FindByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id int64) (*domain.Member, error) {
	m := &domain.Member{}

	err := tx.QueryRowContext(ctx, `
		SELECT id, email, name, point
		FROM members
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&m.ID, &m.Email, &m.Name, &m.Point)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return m, nil
}

func (r *Repository) DebitPointTx(ctx context.Context, tx *sql.Tx, id int64, amount int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE members
		SET point = point - $2
		WHERE id = $1 AND point >= $2
	`, id, amount)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrInsufficientPoint
	}

	return nil
}
