// Package memory provides process-local repositories for development and tests.
package memory

import (
	"context"
	"sync"

	"margin/internal/domain/models"
	"margin/internal/domain/repositories"
)

// Store holds every table. Repositories returned by its methods share it.
type Store struct {
	mu          sync.RWMutex
	profiles    map[string]*models.Profile
	projects    map[string]*models.Project
	finalTexts  map[string]string
	messages    map[string][]models.ConversationMessage
	highlights  map[string][]models.Highlight
	toolServers map[string]*models.ToolServerConfig
	usage       []models.UsageEntry
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		profiles:    make(map[string]*models.Profile),
		projects:    make(map[string]*models.Project),
		finalTexts:  make(map[string]string),
		messages:    make(map[string][]models.ConversationMessage),
		highlights:  make(map[string][]models.Highlight),
		toolServers: make(map[string]*models.ToolServerConfig),
	}
}

// PutProject inserts or replaces a project
func (s *Store) PutProject(p models.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalTexts[p.ID] = p.FinalText
	s.projects[p.ID] = &p
}

// PutProfile inserts or replaces a profile
func (s *Store) PutProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = &p
}

func (s *Store) Profiles() repositories.ProfileRepository       { return &profileRepo{s} }
func (s *Store) Projects() repositories.ProjectRepository       { return &projectRepo{s} }
func (s *Store) Messages() repositories.MessageRepository       { return &messageRepo{s} }
func (s *Store) Highlights() repositories.HighlightRepository   { return &highlightRepo{s} }
func (s *Store) ToolServers() repositories.ToolServerRepository { return &toolServerRepo{s} }
func (s *Store) Usage() repositories.UsageRepository            { return &usageRepo{s} }

// TxManager returns a transaction manager that runs fn directly. Each
// repository call is atomic on its own.
func (s *Store) TxManager() repositories.TransactionManager { return txManager{} }

type txManager struct{}

func (txManager) ExecTx(ctx context.Context, fn repositories.TxFn) error { return fn(ctx) }
