package models

import "time"

// Project is the owning collaborator's project row, read for ownership checks
// and style samples. Project CRUD lives elsewhere.
type Project struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Status      string     `json:"status"` // "active" or "completed"
	FinalText   string     `json:"-"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

const ProjectStatusCompleted = "completed"

// WorkSample is an excerpt of a completed project.
type WorkSample struct {
	ProjectID string
	Title     string
	Text      string
}
