package index

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"ai-paperchat-be/internal/constant"
	"ai-paperchat-be/pkg/embedding"

	"github.com/google/uuid"
)

// ReadinessGate tells the index which papers may hold or serve chunks.
// The ingestion tracker is the production implementation.
type ReadinessGate interface {
	EmbeddingInProgress(paperID uuid.UUID) bool
	IsReady(paperID uuid.UUID) bool
	PositionOf(paperID uuid.UUID) int
}

// Chunk is one embedded slice of a paper as held by the index.
type Chunk struct {
	ID         uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32
}

// Match is a retrieval hit, carrying enough provenance for prompts and
// citations.
type Match struct {
	PaperID       uuid.UUID
	ChunkID       uuid.UUID
	ChunkIndex    int
	PaperPosition int
	Content       string
	Score         float64
}

type paperEntry struct {
	sessionID uuid.UUID
	chunks    []Chunk
}

// Index holds session-scoped embedded chunks in memory and answers top-K
// similarity queries over the ready ones. Writes are whole-paper: a paper's
// chunks land in one atomic swap or not at all, so readers never see a
// half-ingested paper.
type Index struct {
	mu       sync.RWMutex
	papers   map[uuid.UUID]*paperEntry
	sessions map[uuid.UUID]map[uuid.UUID]struct{}

	gate     ReadinessGate
	embedder embedding.EmbeddingProvider
	scorer   Scorer
	logger   *log.Logger
}

func NewIndex(gate ReadinessGate, embedder embedding.EmbeddingProvider, scorer Scorer, logger *log.Logger) *Index {
	if scorer == nil {
		scorer = NewCosineScorer()
	}
	return &Index{
		papers:   make(map[uuid.UUID]*paperEntry),
		sessions: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		gate:     gate,
		embedder: embedder,
		scorer:   scorer,
		logger:   logger,
	}
}

// Add installs all chunks for one paper in a single swap. The gate must
// report the paper as embedding (consumer path) or already ready (warm
// start); anything else is refused so stray writes cannot leak chunks into
// retrieval.
func (ix *Index) Add(sessionID, paperID uuid.UUID, chunks []Chunk) error {
	if !ix.gate.EmbeddingInProgress(paperID) && !ix.gate.IsReady(paperID) {
		return fmt.Errorf("index add refused: paper %s is not embedding or ready", paperID)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if prev, ok := ix.papers[paperID]; ok && prev.sessionID != sessionID {
		delete(ix.sessions[prev.sessionID], paperID)
	}
	cp := make([]Chunk, len(chunks))
	copy(cp, chunks)
	ix.papers[paperID] = &paperEntry{sessionID: sessionID, chunks: cp}
	if ix.sessions[sessionID] == nil {
		ix.sessions[sessionID] = make(map[uuid.UUID]struct{})
	}
	ix.sessions[sessionID][paperID] = struct{}{}

	ix.logger.Printf("[INDEX] Installed %d chunks for paper %s (session %s)", len(cp), paperID, sessionID)
	return nil
}

// Remove drops a paper's chunks, typically ahead of a retry attempt.
func (ix *Index) Remove(paperID uuid.UUID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entry, ok := ix.papers[paperID]
	if !ok {
		return
	}
	delete(ix.papers, paperID)
	delete(ix.sessions[entry.sessionID], paperID)

	ix.logger.Printf("[INDEX] Removed paper %s from index", paperID)
}

// Query embeds the text and returns the session's best k chunks among ready
// papers, best score first. Ties go to the earlier-attached paper, then the
// earlier chunk. An empty result with a nil error is a normal outcome.
func (ix *Index) Query(ctx context.Context, sessionID uuid.UUID, text string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	candidates := ix.readyChunks(sessionID)
	if len(candidates) == 0 {
		return nil, nil
	}

	res, err := ix.embedder.Generate(ctx, text, constant.EmbeddingTaskQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVec := res.Embedding.Values

	for i := range candidates {
		candidates[i].Score = ix.scorer.Score(queryVec, candidates[i].embedding)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.PaperPosition != b.PaperPosition {
			return a.PaperPosition < b.PaperPosition
		}
		return a.ChunkIndex < b.ChunkIndex
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]Match, 0, k)
	for _, c := range candidates[:k] {
		out = append(out, c.Match)
	}

	ix.logger.Printf("[INDEX] Query for session %s matched %d of %d candidate chunks", sessionID, len(out), len(candidates))
	return out, nil
}

type scoredCandidate struct {
	Match
	embedding []float32
}

// readyChunks snapshots the session's retrievable chunks under the read
// lock. Readiness is checked against the gate at query time, so chunks
// installed during embedding become visible the instant the paper flips
// ready.
func (ix *Index) readyChunks(sessionID uuid.UUID) []scoredCandidate {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []scoredCandidate
	for paperID := range ix.sessions[sessionID] {
		if !ix.gate.IsReady(paperID) {
			continue
		}
		pos := ix.gate.PositionOf(paperID)
		for _, c := range ix.papers[paperID].chunks {
			out = append(out, scoredCandidate{
				Match: Match{
					PaperID:       paperID,
					ChunkID:       c.ID,
					ChunkIndex:    c.ChunkIndex,
					PaperPosition: pos,
					Content:       c.Content,
				},
				embedding: c.Embedding,
			})
		}
	}
	return out
}

// Size reports how many chunks the session currently has retrievable.
func (ix *Index) Size(sessionID uuid.UUID) int {
	return len(ix.readyChunks(sessionID))
}
