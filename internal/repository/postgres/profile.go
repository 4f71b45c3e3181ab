package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"margin/internal/domain/models"
	"margin/internal/domain/repositories"
)

// PostgresProfileRepository implements the ProfileRepository interface
type PostgresProfileRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(config *RepositoryConfig) repositories.ProfileRepository {
	return &PostgresProfileRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// GetOrCreate upserts a free profile and returns the stored row.
// An existing row keeps its billing fields; a non-empty email is refreshed.
func (r *PostgresProfileRepository) GetOrCreate(ctx context.Context, userID, email string) (*models.Profile, error) {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (user_id, email, plan, subscription_status)
		VALUES ($1, $2, 'free', $3)
		ON CONFLICT (user_id) DO UPDATE
			SET email = COALESCE(NULLIF(EXCLUDED.email, ''), %[1]s.email)
		RETURNING user_id, email, plan, subscription_status,
			trial_expires_at, billing_cycle_anchor, current_period_end,
			created_at, updated_at
	`, r.tables.Profiles)

	var p models.Profile
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, userID, email, models.SubscriptionNone).Scan(
		&p.UserID,
		&p.Email,
		&p.Plan,
		&p.SubscriptionStatus,
		&p.TrialExpiresAt,
		&p.BillingCycleAnchor,
		&p.CurrentPeriodEnd,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get or create profile: %w", err)
	}

	return &p, nil
}
