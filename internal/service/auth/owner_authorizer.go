// Package auth implements resource authorization checks.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"margin/internal/capabilities"
	"margin/internal/domain"
	"margin/internal/domain/repositories"
	"margin/internal/domain/services"
)

// PlanResolver returns a user's effective plan
type PlanResolver interface {
	Plan(ctx context.Context, userID, email string) (*capabilities.Plan, error)
}

// OwnerBasedAuthorizer implements ResourceAuthorizer using ownership checks.
// A user can access a project if they own it. Tool server management is
// granted by plan or by the admin allowlist.
type OwnerBasedAuthorizer struct {
	projectRepo repositories.ProjectRepository
	plans       PlanResolver
	adminIDs    map[string]bool
	adminEmails map[string]bool
}

var _ services.ResourceAuthorizer = (*OwnerBasedAuthorizer)(nil)

// NewOwnerBasedAuthorizer creates a new ownership-based authorizer.
// Admin emails are compared case-insensitively.
func NewOwnerBasedAuthorizer(
	projectRepo repositories.ProjectRepository,
	plans PlanResolver,
	adminIDs []string,
	adminEmails []string,
) *OwnerBasedAuthorizer {
	a := &OwnerBasedAuthorizer{
		projectRepo: projectRepo,
		plans:       plans,
		adminIDs:    make(map[string]bool, len(adminIDs)),
		adminEmails: make(map[string]bool, len(adminEmails)),
	}
	for _, id := range adminIDs {
		a.adminIDs[id] = true
	}
	for _, e := range adminEmails {
		a.adminEmails[strings.ToLower(e)] = true
	}
	return a
}

// CanAccessProject checks if user owns the project. A missing project is
// reported as forbidden so ids cannot be probed.
func (a *OwnerBasedAuthorizer) CanAccessProject(ctx context.Context, userID, projectID string) error {
	project, err := a.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("access denied to project %s: %w", projectID, domain.ErrForbidden)
		}
		return fmt.Errorf("check project access: %w", err)
	}
	if project.UserID != userID {
		return fmt.Errorf("access denied to project %s: %w", projectID, domain.ErrForbidden)
	}
	return nil
}

// CanManageToolServers checks the admin allowlist, then the user's plan
func (a *OwnerBasedAuthorizer) CanManageToolServers(ctx context.Context, userID, email string) error {
	if a.IsAdmin(userID, email) {
		return nil
	}
	plan, err := a.plans.Plan(ctx, userID, email)
	if err != nil {
		return fmt.Errorf("resolve plan: %w", err)
	}
	if !plan.ToolServers {
		return fmt.Errorf("tool servers require a paid plan: %w", domain.ErrForbidden)
	}
	return nil
}

// IsAdmin reports whether the user is on the admin allowlist
func (a *OwnerBasedAuthorizer) IsAdmin(userID, email string) bool {
	if a.adminIDs[userID] {
		return true
	}
	return email != "" && a.adminEmails[strings.ToLower(email)]
}
