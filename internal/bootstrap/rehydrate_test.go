package bootstrap

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"ai-paperchat-be/internal/constant"
	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/repository/contract"
	"ai-paperchat-be/internal/repository/specification"
	"ai-paperchat-be/pkg/embedding"
	"ai-paperchat-be/pkg/rag/index"
	"ai-paperchat-be/pkg/rag/ingest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bootPaperRepo struct {
	rows    []*entity.Paper
	updated []*entity.Paper
}

func (r *bootPaperRepo) Create(ctx context.Context, paper *entity.Paper) error { return nil }
func (r *bootPaperRepo) Update(ctx context.Context, paper *entity.Paper) error {
	cp := *paper
	r.updated = append(r.updated, &cp)
	return nil
}
func (r *bootPaperRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Paper, error) {
	return nil, nil
}
func (r *bootPaperRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Paper, error) {
	return r.rows, nil
}
func (r *bootPaperRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.rows)), nil
}
func (r *bootPaperRepo) MaxPosition(ctx context.Context, sessionId uuid.UUID) (int, error) {
	return 0, nil
}

type bootChunkRepo struct {
	byPaper map[uuid.UUID][]*entity.PaperChunk
}

func (r *bootChunkRepo) CreateBulk(ctx context.Context, chunks []*entity.PaperChunk) error {
	return nil
}
func (r *bootChunkRepo) DeleteByPaperId(ctx context.Context, paperId uuid.UUID) error { return nil }
func (r *bootChunkRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PaperChunk, error) {
	for _, spec := range specs {
		if sp, ok := spec.(specification.ByPaperID); ok {
			return r.byPaper[sp.PaperID], nil
		}
	}
	return nil, nil
}
func (r *bootChunkRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return 0, nil
}
func (r *bootChunkRepo) SearchSimilarWithScore(ctx context.Context, emb []float32, limit int, sessionId uuid.UUID, threshold float64) ([]*contract.ScoredPaperChunk, error) {
	return nil, nil
}

type bootEmbedder struct{}

func (e *bootEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{1, 0}},
	}, nil
}

func TestRehydrate_RestoresReadyPapersIntoIndex(t *testing.T) {
	discard := log.New(io.Discard, "", 0)
	sessionId := uuid.New()
	readyId := uuid.New()
	failedId := uuid.New()

	papers := &bootPaperRepo{rows: []*entity.Paper{
		{
			Id:            readyId,
			ChatSessionId: sessionId,
			Status:        constant.PaperStatusReady,
			Position:      1,
			Attempt:       1,
			ChunkCount:    2,
			CreatedAt:     time.Now().Add(-time.Hour),
		},
		{
			Id:            failedId,
			ChatSessionId: sessionId,
			Status:        constant.PaperStatusFailed,
			FailureReason: "embedding provider failed",
			Position:      2,
			Attempt:       2,
			CreatedAt:     time.Now().Add(-time.Hour),
		},
	}}
	chunks := &bootChunkRepo{byPaper: map[uuid.UUID][]*entity.PaperChunk{
		readyId: {
			{Id: uuid.New(), PaperId: readyId, ChunkIndex: 0, Content: "alpha", Embedding: []float32{1, 0}},
			{Id: uuid.New(), PaperId: readyId, ChunkIndex: 1, Content: "beta", Embedding: []float32{0, 1}},
		},
	}}

	tracker := ingest.NewTracker(discard)
	searchIndex := index.NewIndex(tracker, &bootEmbedder{}, nil, discard)

	require.NoError(t, rehydrate(context.Background(), papers, chunks, tracker, searchIndex, discard))

	total, ready := tracker.Counts(sessionId)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, ready)
	assert.True(t, tracker.IsReady(readyId))
	assert.Equal(t, 2, searchIndex.Size(sessionId))

	rec, ok := tracker.Get(failedId)
	require.True(t, ok)
	assert.Equal(t, constant.PaperStatusFailed, rec.Status)
	assert.Equal(t, 2, rec.Attempt)
	assert.Empty(t, papers.updated, "settled rows are not rewritten")

	// positions resume after the restored ones
	pos, err := tracker.Register(sessionId, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 3, pos)
}

func TestRehydrate_FailsPapersCaughtMidIngestion(t *testing.T) {
	discard := log.New(io.Discard, "", 0)
	sessionId := uuid.New()
	pendingId := uuid.New()
	embeddingId := uuid.New()

	papers := &bootPaperRepo{rows: []*entity.Paper{
		{Id: pendingId, ChatSessionId: sessionId, Status: constant.PaperStatusPending, Position: 1, Attempt: 1, CreatedAt: time.Now()},
		{Id: embeddingId, ChatSessionId: sessionId, Status: constant.PaperStatusEmbedding, Position: 2, Attempt: 1, CreatedAt: time.Now()},
	}}
	chunks := &bootChunkRepo{byPaper: map[uuid.UUID][]*entity.PaperChunk{}}

	tracker := ingest.NewTracker(discard)
	searchIndex := index.NewIndex(tracker, &bootEmbedder{}, nil, discard)

	require.NoError(t, rehydrate(context.Background(), papers, chunks, tracker, searchIndex, discard))

	for _, id := range []uuid.UUID{pendingId, embeddingId} {
		rec, ok := tracker.Get(id)
		require.True(t, ok)
		assert.Equal(t, constant.PaperStatusFailed, rec.Status)
		assert.Equal(t, "ingestion interrupted by restart", rec.FailureReason)
	}

	require.Len(t, papers.updated, 2, "interrupted rows are settled durably")
	for _, row := range papers.updated {
		assert.Equal(t, constant.PaperStatusFailed, row.Status)
	}
	assert.Zero(t, searchIndex.Size(sessionId))
}
