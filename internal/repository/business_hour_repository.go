package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// BusinessHourRepository persists the weekly business-hours table.
type BusinessHourRepository interface {
	List(ctx context.Context) ([]domain.BusinessHour, error)
	ReplaceAll(ctx context.Context, hours []domain.BusinessHour) error
}

type businessHourRepository struct {
	pool *pgxpool.Pool
}

// NewBusinessHourRepository instantiates repository.
func NewBusinessHourRepository(pool *pgxpool.Pool) BusinessHourRepository {
	return &businessHourRepository{pool: pool}
}

func (r *businessHourRepository) List(ctx context.Context) ([]domain.BusinessHour, error) {
	const query = `
        SELECT day_of_week, is_working_day, start_time, end_time, updated_at
        FROM business_hours ORDER BY day_of_week`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BusinessHour
	for rows.Next() {
		var (
			bh         domain.BusinessHour
			day        int
			start, end pgtype.Time
		)
		if err := rows.Scan(&day, &bh.IsWorkingDay, &start, &end, &bh.UpdatedAt); err != nil {
			return nil, err
		}
		bh.DayOfWeek = time.Weekday(day)
		bh.StartTime = fromPgTime(start)
		bh.EndTime = fromPgTime(end)
		result = append(result, bh)
	}
	return result, rows.Err()
}

// ReplaceAll updates every supplied weekday row in one transaction. Rows are
// upserted, never deleted.
func (r *businessHourRepository) ReplaceAll(ctx context.Context, hours []domain.BusinessHour) error {
	const query = `
        INSERT INTO business_hours (day_of_week, is_working_day, start_time, end_time)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (day_of_week) DO UPDATE
        SET is_working_day=EXCLUDED.is_working_day, start_time=EXCLUDED.start_time,
            end_time=EXCLUDED.end_time, updated_at=NOW()`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, bh := range hours {
			if _, err := tx.Exec(ctx, query,
				int(bh.DayOfWeek),
				bh.IsWorkingDay,
				toPgTime(bh.StartTime),
				toPgTime(bh.EndTime),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func fromPgTime(t pgtype.Time) domain.TimeOfDay {
	if !t.Valid {
		return 0
	}
	return domain.TimeOfDay(time.Duration(t.Microseconds) * time.Microsecond)
}

func toPgTime(t domain.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: time.Duration(t).Microseconds(), Valid: true}
}
