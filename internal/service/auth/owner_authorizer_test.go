package auth

import (
	"context"
	"errors"
	"testing"

	"margin/internal/capabilities"
	"margin/internal/domain"
	"margin/internal/domain/models"
	"margin/internal/repository/memory"
)

type fixedPlan struct {
	plan *capabilities.Plan
	err  error
}

func (f fixedPlan) Plan(ctx context.Context, userID, email string) (*capabilities.Plan, error) {
	return f.plan, f.err
}

func TestCanAccessProject(t *testing.T) {
	store := memory.NewStore()
	store.PutProject(models.Project{ID: "p1", UserID: "owner"})
	a := NewOwnerBasedAuthorizer(store.Projects(), fixedPlan{}, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		userID    string
		projectID string
		wantErr   error
	}{
		{"owner", "owner", "p1", nil},
		{"other user", "intruder", "p1", domain.ErrForbidden},
		{"missing project", "owner", "p404", domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.CanAccessProject(ctx, tt.userID, tt.projectID)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("CanAccessProject() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("CanAccessProject() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCanManageToolServers(t *testing.T) {
	free := &capabilities.Plan{ID: capabilities.PlanFree}
	pro := &capabilities.Plan{ID: capabilities.PlanPro, ToolServers: true}
	ctx := context.Background()

	tests := []struct {
		name    string
		plan    *capabilities.Plan
		userID  string
		email   string
		allowed bool
	}{
		{"free user", free, "u1", "u1@example.com", false},
		{"pro user", pro, "u1", "", true},
		{"admin by id", free, "admin-1", "", true},
		{"admin by email any case", free, "u2", "Ops@Example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewOwnerBasedAuthorizer(nil, fixedPlan{plan: tt.plan}, []string{"admin-1"}, []string{"ops@example.com"})
			err := a.CanManageToolServers(ctx, tt.userID, tt.email)
			if tt.allowed && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tt.allowed && !errors.Is(err, domain.ErrForbidden) {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
		})
	}
}
