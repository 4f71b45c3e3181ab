package services

import "context"

// ResourceAuthorizer checks if a user can access resources.
// Services call the authorizer before operating on resources.
type ResourceAuthorizer interface {
	// CanAccessProject returns domain.ErrForbidden unless the user owns the project
	CanAccessProject(ctx context.Context, userID, projectID string) error

	// CanManageToolServers returns domain.ErrForbidden unless the user's plan or
	// the admin allowlist grants external tool servers
	CanManageToolServers(ctx context.Context, userID, email string) error
}
