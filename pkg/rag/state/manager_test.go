package state

import (
	"io"
	"log"
	"math/rand"
	"sync"
	"testing"

	"ai-paperchat-be/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(memory.NewRAGStateRepository(), log.New(io.Discard, "", 0))
}

func TestStatusDefaultsToDisabled(t *testing.T) {
	m := newTestManager()

	s := m.Status(uuid.New())
	assert.False(t, s.Enabled)
	assert.Nil(t, s.EnabledBy)
	assert.Nil(t, s.EnabledAt)
}

func TestEnableRecordsActorAndTimestamp(t *testing.T) {
	m := newTestManager()
	sessionID := uuid.New()
	actor := uuid.New()

	s := m.Enable(sessionID, actor)
	require.True(t, s.Enabled)
	require.NotNil(t, s.EnabledBy)
	require.NotNil(t, s.EnabledAt)
	assert.Equal(t, actor, *s.EnabledBy)

	// Status round-trips the same record.
	got := m.Status(sessionID)
	assert.True(t, got.Enabled)
	assert.Equal(t, actor, *got.EnabledBy)
}

func TestDoubleEnableRefreshesActor(t *testing.T) {
	m := newTestManager()
	sessionID := uuid.New()
	first := uuid.New()
	second := uuid.New()

	m.Enable(sessionID, first)
	s := m.Enable(sessionID, second)

	require.True(t, s.Enabled)
	assert.Equal(t, second, *s.EnabledBy, "second enable must record the second actor")
}

func TestDisableClearsEnablementMetadata(t *testing.T) {
	m := newTestManager()
	sessionID := uuid.New()

	m.Enable(sessionID, uuid.New())
	s := m.Disable(sessionID)

	assert.False(t, s.Enabled)
	assert.Nil(t, s.EnabledBy)
	assert.Nil(t, s.EnabledAt)

	// Disable is idempotent.
	s = m.Disable(sessionID)
	assert.False(t, s.Enabled)
}

func TestSessionsAreIndependent(t *testing.T) {
	m := newTestManager()
	a := uuid.New()
	b := uuid.New()

	m.Enable(a, uuid.New())

	assert.True(t, m.IsEnabled(a))
	assert.False(t, m.IsEnabled(b), "enabling one session must not affect another")
}

// Every snapshot observed under a random concurrent toggle storm must honor
// the invariant: enabled implies actor+timestamp set, disabled implies both nil.
func TestSnapshotInvariantUnderConcurrentToggles(t *testing.T) {
	m := newTestManager()
	sessionID := uuid.New()
	actors := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 200; i++ {
				switch rng.Intn(3) {
				case 0:
					m.Enable(sessionID, actors[rng.Intn(len(actors))])
				case 1:
					m.Disable(sessionID)
				default:
					s := m.Status(sessionID)
					if s.Enabled {
						if s.EnabledBy == nil || s.EnabledAt == nil {
							t.Error("enabled snapshot missing actor or timestamp")
							return
						}
					} else {
						if s.EnabledBy != nil || s.EnabledAt != nil {
							t.Error("disabled snapshot still carries enablement metadata")
							return
						}
					}
				}
			}
		}(int64(w))
	}
	wg.Wait()

	// Final state is one of the serial outcomes: fully on or fully off.
	s := m.Status(sessionID)
	if s.Enabled {
		assert.NotNil(t, s.EnabledBy)
		assert.NotNil(t, s.EnabledAt)
	} else {
		assert.Nil(t, s.EnabledBy)
		assert.Nil(t, s.EnabledAt)
	}
}
