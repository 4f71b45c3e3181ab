package assistant

import (
	"context"
	"sync"
)

type turnKey struct {
	userID    string
	projectID string
}

type activeTurn struct {
	cancel context.CancelFunc
}

// TurnRegistry tracks the in-flight turn of each (user, project). Starting a
// new turn cancels the previous one.
type TurnRegistry struct {
	mu    sync.Mutex
	turns map[turnKey]*activeTurn
}

// NewTurnRegistry creates an empty registry
func NewTurnRegistry() *TurnRegistry {
	return &TurnRegistry{turns: make(map[turnKey]*activeTurn)}
}

// Begin registers a turn and returns its context. The caller must call
// release when the turn ends; release is a no-op once a newer turn has
// replaced this one.
func (r *TurnRegistry) Begin(parent context.Context, userID, projectID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	key := turnKey{userID, projectID}
	turn := &activeTurn{cancel: cancel}

	r.mu.Lock()
	if prev, ok := r.turns[key]; ok {
		prev.cancel()
	}
	r.turns[key] = turn
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		if r.turns[key] == turn {
			delete(r.turns, key)
		}
		r.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// Abort cancels the in-flight turn, reporting whether there was one
func (r *TurnRegistry) Abort(userID, projectID string) bool {
	key := turnKey{userID, projectID}

	r.mu.Lock()
	defer r.mu.Unlock()
	turn, ok := r.turns[key]
	if !ok {
		return false
	}
	turn.cancel()
	delete(r.turns, key)
	return true
}

// Active returns the number of in-flight turns
func (r *TurnRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.turns)
}
