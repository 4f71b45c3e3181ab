package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"margin/internal/domain/models"
	"margin/internal/domain/repositories"
)

// PostgresProjectRepository implements the ProjectRepository interface
type PostgresProjectRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(config *RepositoryConfig) repositories.ProjectRepository {
	return &PostgresProjectRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// GetByID retrieves a live project by ID
func (r *PostgresProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, status, completed_at, created_at
		FROM %s
		WHERE id = $1 AND deleted_at IS NULL
	`, r.tables.Projects)

	var project models.Project
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.UserID,
		&project.Title,
		&project.Status,
		&project.CompletedAt,
		&project.CreatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, "project", id, "get project")
	}

	return &project, nil
}

// ListCompletedSamples returns the final text of recently completed projects
func (r *PostgresProjectRepository) ListCompletedSamples(ctx context.Context, userID, excludeID string, limit int) ([]models.WorkSample, error) {
	query := fmt.Sprintf(`
		SELECT id, title, final_text
		FROM %s
		WHERE user_id = $1
		  AND id::text <> $2
		  AND status = $3
		  AND deleted_at IS NULL
		  AND final_text <> ''
		ORDER BY completed_at DESC NULLS LAST
		LIMIT $4
	`, r.tables.Projects)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, userID, excludeID, models.ProjectStatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("list work samples: %w", err)
	}
	defer rows.Close()

	var samples []models.WorkSample
	for rows.Next() {
		var s models.WorkSample
		if err := rows.Scan(&s.ProjectID, &s.Title, &s.Text); err != nil {
			return nil, fmt.Errorf("scan work sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate work samples: %w", err)
	}

	return samples, nil
}
