package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// SLARuleRepository persists priority to resolution-time mappings.
type SLARuleRepository interface {
	List(ctx context.Context) ([]domain.SLARule, error)
	GetByPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SLARule, error)
	Upsert(ctx context.Context, rule *domain.SLARule) error
}

type slaRuleRepository struct {
	pool *pgxpool.Pool
}

// NewSLARuleRepository instantiates repository.
func NewSLARuleRepository(pool *pgxpool.Pool) SLARuleRepository {
	return &slaRuleRepository{pool: pool}
}

func (r *slaRuleRepository) List(ctx context.Context) ([]domain.SLARule, error) {
	const query = `
        SELECT priority, resolution_time_hours, updated_at
        FROM sla_rules ORDER BY resolution_time_hours`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLARule
	for rows.Next() {
		var rule domain.SLARule
		if err := rows.Scan(&rule.Priority, &rule.ResolutionTimeHours, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

func (r *slaRuleRepository) GetByPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SLARule, error) {
	const query = `
        SELECT priority, resolution_time_hours, updated_at
        FROM sla_rules WHERE priority=$1`
	var rule domain.SLARule
	if err := r.pool.QueryRow(ctx, query, priority).Scan(
		&rule.Priority,
		&rule.ResolutionTimeHours,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *slaRuleRepository) Upsert(ctx context.Context, rule *domain.SLARule) error {
	const query = `
        INSERT INTO sla_rules (priority, resolution_time_hours)
        VALUES ($1,$2)
        ON CONFLICT (priority) DO UPDATE
        SET resolution_time_hours=EXCLUDED.resolution_time_hours, updated_at=NOW()
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, rule.Priority, rule.ResolutionTimeHours).Scan(&rule.UpdatedAt)
}
