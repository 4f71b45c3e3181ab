package services

import (
	"context"

	"margin/internal/domain/models"
)

// ToolServerService manages an owner's external tool servers
type ToolServerService interface {
	List(ctx context.Context, ownerID string) ([]models.ToolServerConfig, error)
	Create(ctx context.Context, req *models.CreateToolServerRequest) (*models.ToolServerConfig, error)
	Update(ctx context.Context, ownerID, id string, req *models.UpdateToolServerRequest) (*models.ToolServerConfig, error)
	Delete(ctx context.Context, ownerID, id string) error

	// Test handshakes with a candidate config without touching cached pools
	Test(ctx context.Context, req *models.CreateToolServerRequest) (*models.ToolServerTestResult, error)
}
