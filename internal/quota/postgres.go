package quota

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"swiftapply/internal/domain"
	"swiftapply/internal/infra"
	"swiftapply/internal/sqlinline"
)

// PostgresPlans reads and downgrades user plans stored in app_users.
type PostgresPlans struct {
	SQL infra.SQLExecutor
}

func NewPostgresPlans(sql infra.SQLExecutor) *PostgresPlans {
	return &PostgresPlans{SQL: sql}
}

func (s *PostgresPlans) PlanFor(ctx context.Context, userID string) (domain.PlanRecord, error) {
	row := s.SQL.QueryRow(ctx, sqlinline.QSelectUserPlan, userID)
	var plan string
	var expiresAt *time.Time
	if err := row.Scan(&plan, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PlanRecord{}, domain.ErrNotFound
		}
		return domain.PlanRecord{}, err
	}
	return domain.PlanRecord{Plan: domain.Plan(plan), ExpiresAt: expiresAt}, nil
}

func (s *PostgresPlans) Downgrade(ctx context.Context, userID string) error {
	_, err := s.SQL.Exec(ctx, sqlinline.QDowngradeExpiredPlan, userID)
	return err
}

// PostgresCounters keeps the per-identity-per-day counters in usage_logs.
// The conditional upsert in QUpsertUsageCount is the serialization point.
type PostgresCounters struct {
	SQL infra.SQLExecutor
}

func NewPostgresCounters(sql infra.SQLExecutor) *PostgresCounters {
	return &PostgresCounters{SQL: sql}
}

func (s *PostgresCounters) Count(ctx context.Context, identity string, day string) (int, error) {
	row := s.SQL.QueryRow(ctx, sqlinline.QSelectUsageCount, identity, day)
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func (s *PostgresCounters) Increment(ctx context.Context, id domain.Identity, day string, limit int) (int, bool, error) {
	row := s.SQL.QueryRow(ctx, sqlinline.QUpsertUsageCount, id.ID, id.IsUser(), day, limit)
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// update predicate rejected the increment: counter is at the limit
			return limit, false, nil
		}
		return 0, false, err
	}
	return count, true, nil
}

var (
	_ PlanStore    = (*PostgresPlans)(nil)
	_ CounterStore = (*PostgresCounters)(nil)
)
