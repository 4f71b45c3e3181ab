package repositories

import (
	"context"

	"margin/internal/domain/models"
)

// ProfileRepository defines data access for user profiles
type ProfileRepository interface {
	// GetOrCreate returns the profile, inserting free defaults on first encounter
	GetOrCreate(ctx context.Context, userID, email string) (*models.Profile, error)
}
