package contract

import (
	"context"

	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredPaperChunk pairs a chunk with its cosine similarity to a query vector
type ScoredPaperChunk struct {
	Chunk      *entity.PaperChunk
	Similarity float64
}

type PaperChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.PaperChunk) error
	DeleteByPaperId(ctx context.Context, paperId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PaperChunk, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilarWithScore runs a pgvector cosine search across the ready
	// papers of one session, filtered by a minimum similarity threshold.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, sessionId uuid.UUID, threshold float64) ([]*ScoredPaperChunk, error)
}
