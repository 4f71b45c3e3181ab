package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"margin/internal/domain"
	"margin/internal/domain/models"
)

type profileRepo struct{ s *Store }

func (r *profileRepo) GetOrCreate(ctx context.Context, userID, email string) (*models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[userID]
	if !ok {
		now := time.Now().UTC()
		p = &models.Profile{
			UserID:             userID,
			Email:              email,
			Plan:               "free",
			SubscriptionStatus: models.SubscriptionNone,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		r.s.profiles[userID] = p
	} else if email != "" {
		p.Email = email
	}
	out := *p
	return &out, nil
}

type projectRepo struct{ s *Store }

func (r *projectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	out := *p
	return &out, nil
}

func (r *projectRepo) ListCompletedSamples(ctx context.Context, userID, excludeID string, limit int) ([]models.WorkSample, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var done []*models.Project
	for _, p := range r.s.projects {
		if p.UserID == userID && p.ID != excludeID && p.Status == models.ProjectStatusCompleted && r.s.finalTexts[p.ID] != "" {
			done = append(done, p)
		}
	}
	sort.Slice(done, func(i, j int) bool {
		return completedAt(done[i]).After(completedAt(done[j]))
	})

	var samples []models.WorkSample
	for _, p := range done {
		if len(samples) == limit {
			break
		}
		samples = append(samples, models.WorkSample{ProjectID: p.ID, Title: p.Title, Text: r.s.finalTexts[p.ID]})
	}
	return samples, nil
}

func completedAt(p *models.Project) time.Time {
	if p.CompletedAt == nil {
		return time.Time{}
	}
	return *p.CompletedAt
}

type messageRepo struct{ s *Store }

func (r *messageRepo) Append(ctx context.Context, msg *models.ConversationMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[msg.ProjectID]; !ok {
		return fmt.Errorf("project %s: %w", msg.ProjectID, domain.ErrNotFound)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	r.s.messages[msg.ProjectID] = append(r.s.messages[msg.ProjectID], *msg)
	return nil
}

func (r *messageRepo) ListRecent(ctx context.Context, projectID string, limit int) ([]models.ConversationMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.s.messages[projectID]
	start := 0
	if len(all) > limit {
		start = len(all) - limit
	}
	out := make([]models.ConversationMessage, len(all)-start)
	copy(out, all[start:])
	return out, nil
}

type highlightRepo struct{ s *Store }

func (r *highlightRepo) AppendCapped(ctx context.Context, projectID string, highlights []models.Highlight, max int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[projectID]; !ok {
		return fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}

	set := r.s.highlights[projectID]
	for _, h := range highlights {
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		if h.CreatedAt.IsZero() {
			h.CreatedAt = time.Now().UTC()
		}
		set = append(set, h)
	}
	sortHighlights(set)
	if len(set) > max {
		set = append([]models.Highlight(nil), set[len(set)-max:]...)
	}
	r.s.highlights[projectID] = set
	return nil
}

func (r *highlightRepo) List(ctx context.Context, projectID string) ([]models.Highlight, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]models.Highlight, len(r.s.highlights[projectID]))
	copy(out, r.s.highlights[projectID])
	return out, nil
}

// sortHighlights orders oldest first, by created_at then id
func sortHighlights(hs []models.Highlight) {
	sort.SliceStable(hs, func(i, j int) bool {
		if !hs[i].CreatedAt.Equal(hs[j].CreatedAt) {
			return hs[i].CreatedAt.Before(hs[j].CreatedAt)
		}
		return hs[i].ID < hs[j].ID
	})
}

type toolServerRepo struct{ s *Store }

func (r *toolServerRepo) List(ctx context.Context, ownerID string) ([]models.ToolServerConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.ToolServerConfig{}
	for _, cfg := range r.s.toolServers {
		if cfg.OwnerID == ownerID {
			out = append(out, cloneToolServer(cfg))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *toolServerRepo) Get(ctx context.Context, ownerID, id string) (*models.ToolServerConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	cfg, ok := r.s.toolServers[id]
	if !ok || cfg.OwnerID != ownerID {
		return nil, fmt.Errorf("tool server %s: %w", id, domain.ErrNotFound)
	}
	out := cloneToolServer(cfg)
	return &out, nil
}

func (r *toolServerRepo) Create(ctx context.Context, cfg *models.ToolServerConfig, max int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if max > 0 {
		n := 0
		for _, existing := range r.s.toolServers {
			if existing.OwnerID == cfg.OwnerID {
				n++
			}
		}
		if n >= max {
			return fmt.Errorf("owner has %d tool servers: %w", n, domain.ErrCapReached)
		}
	}
	if err := r.checkName(cfg); err != nil {
		return err
	}
	now := time.Now().UTC()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	cfg.CreatedAt, cfg.UpdatedAt = now, now
	stored := cloneToolServer(cfg)
	r.s.toolServers[cfg.ID] = &stored
	return nil
}

func (r *toolServerRepo) Update(ctx context.Context, cfg *models.ToolServerConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.toolServers[cfg.ID]
	if !ok || existing.OwnerID != cfg.OwnerID {
		return fmt.Errorf("tool server %s: %w", cfg.ID, domain.ErrNotFound)
	}
	if err := r.checkName(cfg); err != nil {
		return err
	}
	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = time.Now().UTC()
	stored := cloneToolServer(cfg)
	r.s.toolServers[cfg.ID] = &stored
	return nil
}

func (r *toolServerRepo) Delete(ctx context.Context, ownerID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cfg, ok := r.s.toolServers[id]
	if !ok || cfg.OwnerID != ownerID {
		return fmt.Errorf("tool server %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.toolServers, id)
	return nil
}

// checkName enforces (owner, name) uniqueness. Caller holds the lock.
func (r *toolServerRepo) checkName(cfg *models.ToolServerConfig) error {
	for _, other := range r.s.toolServers {
		if other.OwnerID == cfg.OwnerID && other.ID != cfg.ID && other.Name == cfg.Name {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("tool server '%s' already exists", cfg.Name),
				ResourceType: "tool_server",
				ResourceID:   other.ID,
			}
		}
	}
	return nil
}

func cloneToolServer(cfg *models.ToolServerConfig) models.ToolServerConfig {
	out := *cfg
	out.Headers = make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		out.Headers[k] = v
	}
	return out
}

type usageRepo struct{ s *Store }

func (r *usageRepo) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, e := range r.s.usage {
		if e.UserID == userID && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *usageRepo) Record(ctx context.Context, entry *models.UsageEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if strings.TrimSpace(entry.UserID) == "" {
		return fmt.Errorf("usage entry without user: %w", domain.ErrValidation)
	}
	r.s.usage = append(r.s.usage, *entry)
	return nil
}
