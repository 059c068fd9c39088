package rewind

import (
	"log/slog"
	"sync"

	"github.com/oggyb/muzz-match/internal/ids"
	"github.com/oggyb/muzz-match/internal/metrics"
)

// Registry hands out session-scoped controllers. Nothing here is persisted;
// a restart starts every session fresh.
type Registry struct {
	budget  int
	ledger  Ledger
	matches Matches
	log     *slog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewRegistry creates a registry whose non-premium sessions get budget
// rewinds each.
func NewRegistry(budget int, ledger Ledger, matches Matches, log *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		budget:   budget,
		ledger:   ledger,
		matches:  matches,
		log:      log,
		metrics:  m,
		sessions: make(map[string]*Controller),
	}
}

// Open starts a session for userID.
func (r *Registry) Open(userID uint64, premium bool) (string, *Controller) {
	id := ids.New()
	c := NewController(userID, premium, r.budget, r.ledger, r.matches, r.log, r.metrics)

	r.mu.Lock()
	r.sessions[id] = c
	r.mu.Unlock()

	return id, c
}

// Get returns the session's controller.
func (r *Registry) Get(sessionID string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[sessionID]
	return c, ok
}

// Close forgets a session.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}
