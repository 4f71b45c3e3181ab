package repositories

import (
	"context"
	"time"

	"margin/internal/domain/models"
)

// UsageRepository is the usage ledger
type UsageRepository interface {
	// CountSince counts the user's entries created at or after since
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)

	Record(ctx context.Context, entry *models.UsageEntry) error
}
