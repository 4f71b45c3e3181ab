// Package cached wraps read-mostly repositories with short-lived LRU caches.
package cached

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"margin/internal/domain/models"
	"margin/internal/domain/repositories"
)

// Defaults for the project read cache
const (
	DefaultSize = 1024
	DefaultTTL  = 30 * time.Second
)

// ProjectRepository caches project lookups and work samples. Entries expire
// after a fixed TTL; the oldest entry is evicted when the cache is full.
// Errors are never cached.
type ProjectRepository struct {
	next     repositories.ProjectRepository
	projects *expirable.LRU[string, models.Project]
	samples  *expirable.LRU[string, []models.WorkSample]
}

// NewProjectRepository wraps next. size <= 0 and ttl <= 0 select the defaults.
func NewProjectRepository(next repositories.ProjectRepository, size int, ttl time.Duration) *ProjectRepository {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ProjectRepository{
		next:     next,
		projects: expirable.NewLRU[string, models.Project](size, nil, ttl),
		samples:  expirable.NewLRU[string, []models.WorkSample](size, nil, ttl),
	}
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	if p, ok := r.projects.Get(id); ok {
		return &p, nil
	}
	p, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.projects.Add(id, *p)
	return p, nil
}

func (r *ProjectRepository) ListCompletedSamples(ctx context.Context, userID, excludeID string, limit int) ([]models.WorkSample, error) {
	key := fmt.Sprintf("%s|%s|%d", userID, excludeID, limit)
	if s, ok := r.samples.Get(key); ok {
		return s, nil
	}
	s, err := r.next.ListCompletedSamples(ctx, userID, excludeID, limit)
	if err != nil {
		return nil, err
	}
	r.samples.Add(key, s)
	return s, nil
}

// Purge drops every cached entry
func (r *ProjectRepository) Purge() {
	r.projects.Purge()
	r.samples.Purge()
}
