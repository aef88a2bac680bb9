package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// HolidayRepository persists holidays.
type HolidayRepository interface {
	List(ctx context.Context) ([]domain.Holiday, error)
	Create(ctx context.Context, holiday *domain.Holiday) error
	Delete(ctx context.Context, id string) error
}

type holidayRepository struct {
	pool *pgxpool.Pool
}

// NewHolidayRepository instantiates repository.
func NewHolidayRepository(pool *pgxpool.Pool) HolidayRepository {
	return &holidayRepository{pool: pool}
}

func (r *holidayRepository) List(ctx context.Context) ([]domain.Holiday, error) {
	const query = `
        SELECT id, name, holiday_date, is_recurring, created_at
        FROM holidays ORDER BY holiday_date`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Holiday
	for rows.Next() {
		var h domain.Holiday
		if err := rows.Scan(&h.ID, &h.Name, &h.Date, &h.IsRecurring, &h.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func (r *holidayRepository) Create(ctx context.Context, holiday *domain.Holiday) error {
	const query = `
        INSERT INTO holidays (name, holiday_date, is_recurring)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		holiday.Name,
		holiday.Date,
		holiday.IsRecurring,
	).Scan(&holiday.ID, &holiday.CreatedAt)
}

func (r *holidayRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM holidays WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
