package repositories

import (
	"context"

	"margin/internal/domain/models"
)

// ToolServerRepository defines data access for tool server configs.
// Every method is scoped to an owner.
type ToolServerRepository interface {
	// List returns the owner's servers ordered by created_at
	List(ctx context.Context, ownerID string) ([]models.ToolServerConfig, error)

	// Get returns domain.ErrNotFound if the server does not exist for owner
	Get(ctx context.Context, ownerID, id string) (*models.ToolServerConfig, error)

	// Create returns *domain.ConflictError on a duplicate name and
	// domain.ErrCapReached when the owner already has max servers. The
	// check and the insert are atomic; max <= 0 means no cap.
	Create(ctx context.Context, cfg *models.ToolServerConfig, max int) error

	// Update returns *domain.ConflictError on a duplicate name
	Update(ctx context.Context, cfg *models.ToolServerConfig) error

	Delete(ctx context.Context, ownerID, id string) error
}
