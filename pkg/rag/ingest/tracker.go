package ingest

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"ai-paperchat-be/internal/constant"

	"github.com/google/uuid"
)

var (
	ErrUnknownPaper      = errors.New("paper is not tracked")
	ErrInvalidTransition = errors.New("invalid ingestion status transition")
	ErrAlreadyTracked    = errors.New("paper is already tracked")
)

// Record is the tracker's view of one paper's ingestion lifecycle.
type Record struct {
	PaperID       uuid.UUID
	SessionID     uuid.UUID
	Status        string
	Position      int
	Attempt       int
	ChunkCount    int
	FailureReason string
	UpdatedAt     time.Time
}

// Tracker drives the pending -> embedding -> ready|failed machine for every
// paper attached to a session. ready and failed are terminal within an
// attempt; NewAttempt is the only way out of failed. All methods are safe
// for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	records   map[uuid.UUID]*Record
	bySession map[uuid.UUID][]uuid.UUID
	nextPos   map[uuid.UUID]int
	logger    *log.Logger
}

// NewTracker creates an empty ingestion tracker
func NewTracker(logger *log.Logger) *Tracker {
	return &Tracker{
		records:   make(map[uuid.UUID]*Record),
		bySession: make(map[uuid.UUID][]uuid.UUID),
		nextPos:   make(map[uuid.UUID]int),
		logger:    logger,
	}
}

// Register starts tracking a newly attached paper as pending and assigns its
// attach position inside the session. Positions are what break retrieval
// score ties, so they are handed out under the tracker lock.
func (t *Tracker) Register(sessionID, paperID uuid.UUID) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.records[paperID]; exists {
		return 0, fmt.Errorf("register %s: %w", paperID, ErrAlreadyTracked)
	}

	t.nextPos[sessionID]++
	pos := t.nextPos[sessionID]

	t.records[paperID] = &Record{
		PaperID:   paperID,
		SessionID: sessionID,
		Status:    constant.PaperStatusPending,
		Position:  pos,
		Attempt:   1,
		UpdatedAt: time.Now(),
	}
	t.bySession[sessionID] = append(t.bySession[sessionID], paperID)

	t.logger.Printf("[INGEST] Registered paper %s at position %d (session %s)", paperID, pos, sessionID)
	return pos, nil
}

// Restore seeds the tracker from durable rows on boot. It accepts any status
// and keeps the per-session position counter ahead of restored positions.
func (t *Tracker) Restore(rec Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.records[rec.PaperID]; exists {
		return
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	r := rec
	t.records[rec.PaperID] = &r
	t.bySession[rec.SessionID] = append(t.bySession[rec.SessionID], rec.PaperID)
	if rec.Position > t.nextPos[rec.SessionID] {
		t.nextPos[rec.SessionID] = rec.Position
	}
}

// MarkEmbedding moves a pending paper into the embedding stage.
func (t *Tracker) MarkEmbedding(paperID uuid.UUID) error {
	return t.transition(paperID, constant.PaperStatusEmbedding, func(r *Record) error {
		if r.Status != constant.PaperStatusPending {
			return fmt.Errorf("%s -> embedding: %w", r.Status, ErrInvalidTransition)
		}
		return nil
	})
}

// MarkReady completes the attempt. Only an embedding paper can become ready:
// readiness is what exposes chunks to retrieval, so it is never skipped into.
func (t *Tracker) MarkReady(paperID uuid.UUID, chunkCount int) error {
	return t.transition(paperID, constant.PaperStatusReady, func(r *Record) error {
		if r.Status != constant.PaperStatusEmbedding {
			return fmt.Errorf("%s -> ready: %w", r.Status, ErrInvalidTransition)
		}
		r.ChunkCount = chunkCount
		r.FailureReason = ""
		return nil
	})
}

// MarkFailed terminates the attempt with a stored reason. Allowed from
// pending or embedding; a ready paper cannot fail retroactively.
func (t *Tracker) MarkFailed(paperID uuid.UUID, reason string) error {
	return t.transition(paperID, constant.PaperStatusFailed, func(r *Record) error {
		if r.Status != constant.PaperStatusPending && r.Status != constant.PaperStatusEmbedding {
			return fmt.Errorf("%s -> failed: %w", r.Status, ErrInvalidTransition)
		}
		r.FailureReason = reason
		r.ChunkCount = 0
		return nil
	})
}

// NewAttempt reopens a failed paper as a fresh pending attempt. The failed
// attempt itself stays terminal; this starts attempt N+1 from the top.
func (t *Tracker) NewAttempt(paperID uuid.UUID) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[paperID]
	if !ok {
		return 0, fmt.Errorf("new attempt for %s: %w", paperID, ErrUnknownPaper)
	}
	if r.Status != constant.PaperStatusFailed {
		return 0, fmt.Errorf("new attempt from %s: %w", r.Status, ErrInvalidTransition)
	}

	r.Attempt++
	r.Status = constant.PaperStatusPending
	r.FailureReason = ""
	r.ChunkCount = 0
	r.UpdatedAt = time.Now()

	t.logger.Printf("[INGEST] Paper %s reopened as attempt %d", paperID, r.Attempt)
	return r.Attempt, nil
}

// Forget removes a paper from the tracker entirely. It exists for the attach
// path: when the durable insert fails right after Register, the registration
// is rolled back so the session does not count a paper that has no row.
// The position counter is not rewound; positions may skip numbers.
func (t *Tracker) Forget(paperID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[paperID]
	if !ok {
		return
	}
	delete(t.records, paperID)

	ids := t.bySession[r.SessionID]
	for i, id := range ids {
		if id == paperID {
			t.bySession[r.SessionID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(t.bySession[r.SessionID]) == 0 {
		delete(t.bySession, r.SessionID)
	}
	t.logger.Printf("[INGEST] Forgot paper %s (session %s)", paperID, r.SessionID)
}

func (t *Tracker) transition(paperID uuid.UUID, next string, check func(*Record) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[paperID]
	if !ok {
		return fmt.Errorf("transition %s: %w", paperID, ErrUnknownPaper)
	}
	if err := check(r); err != nil {
		return err
	}
	r.Status = next
	r.UpdatedAt = time.Now()

	t.logger.Printf("[INGEST] Paper %s -> %s (attempt %d)", paperID, next, r.Attempt)
	return nil
}

// Get returns a copy of the paper's record.
func (t *Tracker) Get(paperID uuid.UUID) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[paperID]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Counts reports how many papers the session has and how many are ready.
func (t *Tracker) Counts(sessionID uuid.UUID) (total int, ready int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range t.bySession[sessionID] {
		total++
		if t.records[id].Status == constant.PaperStatusReady {
			ready++
		}
	}
	return total, ready
}

// SessionPapers returns copies of the session's records ordered by attach
// position.
func (t *Tracker) SessionPapers(sessionID uuid.UUID) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Record, 0, len(t.bySession[sessionID]))
	for _, id := range t.bySession[sessionID] {
		out = append(out, *t.records[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// EmbeddingInProgress reports whether the paper is mid-embedding. The
// retrieval index uses this as its gate for accepting chunk batches.
func (t *Tracker) EmbeddingInProgress(paperID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[paperID]
	return ok && r.Status == constant.PaperStatusEmbedding
}

// IsReady reports whether the paper's chunks may serve retrieval queries.
func (t *Tracker) IsReady(paperID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[paperID]
	return ok && r.Status == constant.PaperStatusReady
}

// PositionOf returns the paper's attach position, 0 when untracked.
func (t *Tracker) PositionOf(paperID uuid.UUID) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.records[paperID]; ok {
		return r.Position
	}
	return 0
}
