package cached

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"margin/internal/domain"
	"margin/internal/domain/models"
)

type countingRepo struct {
	mu      sync.Mutex
	gets    int
	samples int
	err     error
}

func (c *countingRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.err != nil {
		return nil, c.err
	}
	return &models.Project{ID: id, UserID: "u1"}, nil
}

func (c *countingRepo) ListCompletedSamples(ctx context.Context, userID, excludeID string, limit int) ([]models.WorkSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples++
	return []models.WorkSample{{ProjectID: "old", Text: "sample"}}, nil
}

func TestProjectRepositoryCachesHits(t *testing.T) {
	next := &countingRepo{}
	repo := NewProjectRepository(next, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "u1", p.UserID)
		_, err = repo.ListCompletedSamples(ctx, "u1", "p1", 2)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, next.gets)
	assert.Equal(t, 1, next.samples)

	repo.Purge()
	_, _ = repo.GetByID(ctx, "p1")
	assert.Equal(t, 2, next.gets)
}

func TestProjectRepositoryDoesNotCacheErrors(t *testing.T) {
	next := &countingRepo{err: domain.ErrNotFound}
	repo := NewProjectRepository(next, 10, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := repo.GetByID(context.Background(), "missing")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	}
	assert.Equal(t, 2, next.gets)
}

func TestProjectRepositoryExpires(t *testing.T) {
	next := &countingRepo{}
	repo := NewProjectRepository(next, 10, 20*time.Millisecond)

	_, _ = repo.GetByID(context.Background(), "p1")
	time.Sleep(60 * time.Millisecond)
	_, _ = repo.GetByID(context.Background(), "p1")
	assert.Equal(t, 2, next.gets)
}
