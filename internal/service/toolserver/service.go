// Package toolserver manages users' external tool server configs.
package toolserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"margin/internal/config"
	"margin/internal/domain"
	"margin/internal/domain/models"
	"margin/internal/domain/repositories"
	"margin/internal/domain/services"
)

// Invalidator drops an owner's cached tool pool
type Invalidator interface {
	Invalidate(ownerID string)
}

// Tester handshakes with a server config
type Tester interface {
	TestServer(ctx context.Context, cfg models.ToolServerConfig) (*models.ToolServerTestResult, error)
}

// headerToken is the RFC 7230 token charset for header names.
var headerToken = regexp.MustCompile("^[!#$%&'*+\\-.^_`|~0-9A-Za-z]+$")

type service struct {
	repo   repositories.ToolServerRepository
	pools  Invalidator
	tester Tester
	logger *slog.Logger
}

// NewService creates the tool server service. Every mutation invalidates
// the owner's pool in pools.
func NewService(
	repo repositories.ToolServerRepository,
	pools Invalidator,
	tester Tester,
	logger *slog.Logger,
) services.ToolServerService {
	return &service{
		repo:   repo,
		pools:  pools,
		tester: tester,
		logger: logger,
	}
}

func (s *service) List(ctx context.Context, ownerID string) ([]models.ToolServerConfig, error) {
	return s.repo.List(ctx, ownerID)
}

// Create adds a server after validation. The repository enforces the
// per-owner cap.
func (s *service) Create(ctx context.Context, req *models.CreateToolServerRequest) (*models.ToolServerConfig, error) {
	cfg := fromRequest(req)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, cfg, config.MaxToolServers); err != nil {
		if errors.Is(err, domain.ErrCapReached) {
			return nil, fmt.Errorf("%w: tool server limit of %d reached", domain.ErrValidation, config.MaxToolServers)
		}
		return nil, err
	}
	s.pools.Invalidate(req.OwnerID)

	s.logger.Info("tool server created",
		"id", cfg.ID,
		"owner", cfg.OwnerID,
		"name", cfg.Name,
	)
	return cfg, nil
}

// Update applies a partial update; nil fields keep their value
func (s *service) Update(ctx context.Context, ownerID, id string, req *models.UpdateToolServerRequest) (*models.ToolServerConfig, error) {
	if req.Name == nil && req.URL == nil && req.Headers == nil && req.Enabled == nil {
		return nil, fmt.Errorf("%w: at least one field must be provided", domain.ErrValidation)
	}

	cfg, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		cfg.Name = strings.TrimSpace(*req.Name)
	}
	if req.URL != nil {
		cfg.URL = strings.TrimSpace(*req.URL)
	}
	if req.Headers != nil {
		cfg.Headers = *req.Headers
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	cfg.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, err
	}
	s.pools.Invalidate(ownerID)

	s.logger.Info("tool server updated", "id", id, "owner", ownerID, "enabled", cfg.Enabled)
	return cfg, nil
}

func (s *service) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.pools.Invalidate(ownerID)
	s.logger.Info("tool server deleted", "id", id, "owner", ownerID)
	return nil
}

// Test validates the candidate and probes it. Nothing is saved.
func (s *service) Test(ctx context.Context, req *models.CreateToolServerRequest) (*models.ToolServerTestResult, error) {
	cfg := fromRequest(req)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return s.tester.TestServer(ctx, *cfg)
}

func fromRequest(req *models.CreateToolServerRequest) *models.ToolServerConfig {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	headers := req.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	now := time.Now().UTC()
	return &models.ToolServerConfig{
		OwnerID:   req.OwnerID,
		Name:      strings.TrimSpace(req.Name),
		URL:       strings.TrimSpace(req.URL),
		Headers:   headers,
		Enabled:   enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// validateConfig returns domain.FieldErrors keyed by JSON field name
func validateConfig(cfg *models.ToolServerConfig) error {
	err := validation.ValidateStruct(cfg,
		validation.Field(&cfg.Name,
			validation.Required,
			validation.Length(1, config.MaxToolServerNameLength),
		),
		validation.Field(&cfg.URL,
			validation.Required,
			validation.By(httpURL),
		),
		validation.Field(&cfg.Headers, validation.By(headerMap)),
	)
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		out := make(domain.FieldErrors, len(fieldErrs))
		for field, e := range fieldErrs {
			out[field] = e.Error()
		}
		return out
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

func httpURL(value interface{}) error {
	v, isNil := validation.Indirect(value)
	s, _ := v.(string)
	if isNil || s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https")
	}
	return nil
}

func headerMap(value interface{}) error {
	v, isNil := validation.Indirect(value)
	headers, _ := v.(map[string]string)
	if isNil || len(headers) == 0 {
		return nil
	}
	for name, val := range headers {
		if !headerToken.MatchString(name) {
			return fmt.Errorf("invalid header name %q", name)
		}
		if strings.ContainsAny(val, "\r\n") {
			return fmt.Errorf("header %s has an invalid value", name)
		}
	}
	return nil
}
