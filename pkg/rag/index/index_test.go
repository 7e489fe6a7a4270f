package index

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"ai-paperchat-be/pkg/embedding"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGate struct {
	status   map[uuid.UUID]string
	position map[uuid.UUID]int
}

func newFakeGate() *fakeGate {
	return &fakeGate{status: map[uuid.UUID]string{}, position: map[uuid.UUID]int{}}
}

func (g *fakeGate) EmbeddingInProgress(id uuid.UUID) bool { return g.status[id] == "embedding" }
func (g *fakeGate) IsReady(id uuid.UUID) bool             { return g.status[id] == "ready" }
func (g *fakeGate) PositionOf(id uuid.UUID) int           { return g.position[id] }

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: f.vector},
	}, nil
}

func newTestIndex(gate ReadinessGate, embedder embedding.EmbeddingProvider) *Index {
	return NewIndex(gate, embedder, nil, log.New(io.Discard, "", 0))
}

func chunkWith(idx int, vec []float32) Chunk {
	return Chunk{ID: uuid.New(), ChunkIndex: idx, Content: "chunk", Embedding: vec}
}

func TestIndex_AddRefusedUnlessEmbeddingOrReady(t *testing.T) {
	gate := newFakeGate()
	ix := newTestIndex(gate, &fakeEmbedder{})
	session, paper := uuid.New(), uuid.New()

	err := ix.Add(session, paper, []Chunk{chunkWith(0, []float32{1, 0})})
	assert.Error(t, err, "untracked paper cannot enter the index")

	gate.status[paper] = "pending"
	assert.Error(t, ix.Add(session, paper, []Chunk{chunkWith(0, []float32{1, 0})}))

	gate.status[paper] = "embedding"
	assert.NoError(t, ix.Add(session, paper, []Chunk{chunkWith(0, []float32{1, 0})}))

	gate.status[paper] = "ready"
	assert.NoError(t, ix.Add(session, paper, []Chunk{chunkWith(0, []float32{1, 0})}), "warm start re-adds ready papers")
}

func TestIndex_ChunksInvisibleUntilReady(t *testing.T) {
	gate := newFakeGate()
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	ix := newTestIndex(gate, emb)
	session, paper := uuid.New(), uuid.New()

	gate.status[paper] = "embedding"
	gate.position[paper] = 1
	require.NoError(t, ix.Add(session, paper, []Chunk{chunkWith(0, []float32{1, 0})}))

	matches, err := ix.Query(context.Background(), session, "q", 5)
	require.NoError(t, err)
	assert.Empty(t, matches, "mid-embedding chunks must not serve retrieval")
	assert.Zero(t, emb.calls, "no candidates means no embedding call")

	gate.status[paper] = "ready"
	matches, err = ix.Query(context.Background(), session, "q", 5)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, paper, matches[0].PaperID)
}

func TestIndex_QueryRanksByScore(t *testing.T) {
	gate := newFakeGate()
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	ix := newTestIndex(gate, emb)
	session, paper := uuid.New(), uuid.New()

	gate.status[paper] = "embedding"
	gate.position[paper] = 1

	exact := chunkWith(0, []float32{1, 0})
	near := chunkWith(1, []float32{0.9, 0.4359})
	orthogonal := chunkWith(2, []float32{0, 1})
	require.NoError(t, ix.Add(session, paper, []Chunk{orthogonal, exact, near}))
	gate.status[paper] = "ready"

	matches, err := ix.Query(context.Background(), session, "q", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, exact.ID, matches[0].ChunkID)
	assert.Equal(t, near.ID, matches[1].ChunkID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestIndex_TiesBrokenByPositionThenChunkIndex(t *testing.T) {
	gate := newFakeGate()
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	ix := newTestIndex(gate, emb)
	session := uuid.New()
	early, late := uuid.New(), uuid.New()

	for paper, pos := range map[uuid.UUID]int{early: 1, late: 2} {
		gate.status[paper] = "embedding"
		gate.position[paper] = pos
	}

	// identical embeddings => identical scores everywhere
	same := []float32{1, 0}
	lateChunks := []Chunk{chunkWith(0, same)}
	earlyChunks := []Chunk{chunkWith(1, same), chunkWith(0, same)}
	require.NoError(t, ix.Add(session, late, lateChunks))
	require.NoError(t, ix.Add(session, early, earlyChunks))
	gate.status[early] = "ready"
	gate.status[late] = "ready"

	matches, err := ix.Query(context.Background(), session, "q", 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, early, matches[0].PaperID)
	assert.Equal(t, 0, matches[0].ChunkIndex, "within a paper the earlier chunk wins the tie")
	assert.Equal(t, early, matches[1].PaperID)
	assert.Equal(t, 1, matches[1].ChunkIndex)
	assert.Equal(t, late, matches[2].PaperID, "later-attached paper loses the tie")
}

func TestIndex_QueryEmptySessionIsValid(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	ix := newTestIndex(newFakeGate(), emb)

	matches, err := ix.Query(context.Background(), uuid.New(), "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Zero(t, emb.calls)
}

func TestIndex_QueryPropagatesEmbedderFailure(t *testing.T) {
	gate := newFakeGate()
	emb := &fakeEmbedder{err: errors.New("provider down")}
	ix := newTestIndex(gate, emb)
	session, paper := uuid.New(), uuid.New()

	gate.status[paper] = "embedding"
	require.NoError(t, ix.Add(session, paper, []Chunk{chunkWith(0, []float32{1, 0})}))
	gate.status[paper] = "ready"

	_, err := ix.Query(context.Background(), session, "q", 1)
	assert.ErrorContains(t, err, "failed to embed query")
}

func TestIndex_RemoveDropsPaper(t *testing.T) {
	gate := newFakeGate()
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	ix := newTestIndex(gate, emb)
	session, paper := uuid.New(), uuid.New()

	gate.status[paper] = "embedding"
	require.NoError(t, ix.Add(session, paper, []Chunk{chunkWith(0, []float32{1, 0})}))
	gate.status[paper] = "ready"
	require.Equal(t, 1, ix.Size(session))

	ix.Remove(paper)
	assert.Zero(t, ix.Size(session))

	matches, err := ix.Query(context.Background(), session, "q", 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestIndex_AddReplacesPreviousAttempt(t *testing.T) {
	gate := newFakeGate()
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	ix := newTestIndex(gate, emb)
	session, paper := uuid.New(), uuid.New()

	gate.status[paper] = "embedding"
	gate.position[paper] = 1
	require.NoError(t, ix.Add(session, paper, []Chunk{chunkWith(0, []float32{1, 0}), chunkWith(1, []float32{1, 0})}))

	// retry attempt re-embeds into a single chunk
	fresh := chunkWith(0, []float32{1, 0})
	require.NoError(t, ix.Add(session, paper, []Chunk{fresh}))
	gate.status[paper] = "ready"

	matches, err := ix.Query(context.Background(), session, "q", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, fresh.ID, matches[0].ChunkID)
}
