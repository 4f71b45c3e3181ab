package services

import (
	"context"

	"margin/internal/domain/models"
)

// UsageGate decides whether a user may start another assistant turn
type UsageGate interface {
	// Evaluate returns the current decision with no side effects
	Evaluate(ctx context.Context, userID, email string) (*models.UsageDecision, error)

	// Check returns *domain.LimitExceededError when the quota is spent
	Check(ctx context.Context, userID, email string) (*models.UsageDecision, error)

	// Record writes one ledger entry for a successful turn
	Record(ctx context.Context, entry *models.UsageEntry) error
}
