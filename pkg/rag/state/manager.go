package state

import (
	"log"
	"time"

	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/repository/memory"

	"github.com/google/uuid"
)

// Manager owns the per-session RAG toggle. Writers build a fresh record and
// replace it wholesale, so a concurrent enable/disable lands on one of the
// two serial outcomes and readers never see enabled=true without its actor
// and timestamp.
type Manager struct {
	store  *memory.RAGStateRepository
	logger *log.Logger
}

// NewManager creates a new RAG state manager
func NewManager(store *memory.RAGStateRepository, logger *log.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Enable turns retrieval on for the session. Enabling an already-enabled
// session is not an error; it refreshes the actor and timestamp.
func (m *Manager) Enable(sessionID uuid.UUID, actor uuid.UUID) *entity.RAGState {
	now := time.Now()
	next := &entity.RAGState{
		SessionID: sessionID,
		Enabled:   true,
		EnabledBy: &actor,
		EnabledAt: &now,
	}
	m.store.Save(next)
	m.logger.Printf("[STATE] RAG enabled for session %s by %s", sessionID, actor)
	return next
}

// Disable turns retrieval off and clears the enablement metadata. Disabling
// an already-disabled session is a no-op, not an error.
func (m *Manager) Disable(sessionID uuid.UUID) *entity.RAGState {
	next := &entity.RAGState{
		SessionID: sessionID,
		Enabled:   false,
	}
	m.store.Save(next)
	m.logger.Printf("[STATE] RAG disabled for session %s", sessionID)
	return next
}

// Status returns the session's current toggle. Sessions with no recorded
// state report the disabled default; absence is not a failure.
func (m *Manager) Status(sessionID uuid.UUID) *entity.RAGState {
	if s, found := m.store.Get(sessionID.String()); found {
		return s
	}
	return &entity.RAGState{SessionID: sessionID, Enabled: false}
}

// IsEnabled is a convenience wrapper around Status.
func (m *Manager) IsEnabled(sessionID uuid.UUID) bool {
	return m.Status(sessionID).Enabled
}
