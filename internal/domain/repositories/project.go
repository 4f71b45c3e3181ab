package repositories

import (
	"context"

	"margin/internal/domain/models"
)

// ProjectRepository reads projects owned by the project collaborator
type ProjectRepository interface {
	// GetByID retrieves a project by ID. Returns domain.ErrNotFound if missing.
	GetByID(ctx context.Context, id string) (*models.Project, error)

	// ListCompletedSamples returns excerpts of the user's completed projects,
	// most recently completed first, excluding excludeID
	ListCompletedSamples(ctx context.Context, userID, excludeID string, limit int) ([]models.WorkSample, error)
}
