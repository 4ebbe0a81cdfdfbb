package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scanin/scanin/internal/database"
)

// PolicyRepository stores the single scan policy row. The row is seeded on
// first startup and mutated only through Put.
type PolicyRepository struct {
	pool *Pool
}

// NewPolicyRepository creates a new PostgreSQL policy repository
func NewPolicyRepository(pool *Pool) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

// Get reads the current policy. It is called fresh on every scan, so the
// query stays a single-row primary key lookup.
func (r *PolicyRepository) Get(ctx context.Context) (*database.ScanPolicy, error) {
	query := `
		SELECT similarity_threshold, work_start_time, grace_period_minutes,
		       liveness_check_enabled, liveness_fail_closed, updated_at
		FROM scan_policy
		WHERE id = 1
	`

	var p database.ScanPolicy
	err := r.pool.QueryRow(ctx, query).Scan(
		&p.SimilarityThreshold,
		&p.WorkStartTime,
		&p.GracePeriodMinutes,
		&p.LivenessCheckEnabled,
		&p.LivenessFailClosed,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("scan policy not seeded")
	}
	if err != nil {
		return nil, fmt.Errorf("query scan policy: %w", err)
	}
	return &p, nil
}

// Put replaces the policy row (upsert). Values are validated by the caller
// before they get here.
func (r *PolicyRepository) Put(ctx context.Context, policy *database.ScanPolicy) error {
	query := `
		INSERT INTO scan_policy (id, similarity_threshold, work_start_time,
		                         grace_period_minutes, liveness_check_enabled,
		                         liveness_fail_closed, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			similarity_threshold = EXCLUDED.similarity_threshold,
			work_start_time = EXCLUDED.work_start_time,
			grace_period_minutes = EXCLUDED.grace_period_minutes,
			liveness_check_enabled = EXCLUDED.liveness_check_enabled,
			liveness_fail_closed = EXCLUDED.liveness_fail_closed,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		policy.SimilarityThreshold,
		policy.WorkStartTime,
		policy.GracePeriodMinutes,
		policy.LivenessCheckEnabled,
		policy.LivenessFailClosed,
	)
	if err != nil {
		return fmt.Errorf("upsert scan policy: %w", err)
	}
	return nil
}

// Seed writes the policy row only when none exists yet.
func (r *PolicyRepository) Seed(ctx context.Context, policy *database.ScanPolicy) error {
	query := `
		INSERT INTO scan_policy (id, similarity_threshold, work_start_time,
		                         grace_period_minutes, liveness_check_enabled,
		                         liveness_fail_closed)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		policy.SimilarityThreshold,
		policy.WorkStartTime,
		policy.GracePeriodMinutes,
		policy.LivenessCheckEnabled,
		policy.LivenessFailClosed,
	)
	if err != nil {
		return fmt.Errorf("seed scan policy: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ database.PolicyStore = (*PolicyRepository)(nil)
