package implementation

import (
	"context"

	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/mapper"
	"ai-paperchat-be/internal/model"
	"ai-paperchat-be/internal/repository/contract"
	"ai-paperchat-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type PaperChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PaperMapper
}

func NewPaperChunkRepository(db *gorm.DB) contract.PaperChunkRepository {
	return &PaperChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewPaperMapper(),
	}
}

func (r *PaperChunkRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *PaperChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.PaperChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := r.mapper.ChunksToModels(chunks)
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	// Update IDs back to entities
	for i, m := range models {
		*chunks[i] = *r.mapper.ChunkToEntity(m)
	}
	return nil
}

func (r *PaperChunkRepositoryImpl) DeleteByPaperId(ctx context.Context, paperId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("paper_id = ?", paperId).Delete(&model.PaperChunk{}).Error
}

func (r *PaperChunkRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PaperChunk, error) {
	var models []*model.PaperChunk
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ChunksToEntities(models), nil
}

func (r *PaperChunkRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.PaperChunk{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SearchSimilarWithScore returns chunks of the session's ready papers with
// similarity scores, filtered by threshold.
func (r *PaperChunkRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, sessionId uuid.UUID, threshold float64) ([]*contract.ScoredPaperChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is: 1 - cosine_similarity
	// So we compute: 1 - (embedding <=> query_vector) = cosine_similarity
	type result struct {
		model.PaperChunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("paper_chunks").
		Select("paper_chunks.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Joins("JOIN papers ON papers.id = paper_chunks.paper_id").
		Where("papers.chat_session_id = ?", sessionId).
		Where("papers.status = ?", "ready").
		Where("paper_chunks.deleted_at IS NULL").
		Where("papers.deleted_at IS NULL").
		Where("1 - (embedding <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error

	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredPaperChunk, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredPaperChunk{
			Chunk:      r.mapper.ChunkToEntity(&res.PaperChunk),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
