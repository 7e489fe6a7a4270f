package mapper

import (
	"encoding/json"
	"time"

	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaperMapper struct{}

func NewPaperMapper() *PaperMapper {
	return &PaperMapper{}
}

func (m *PaperMapper) ToEntity(p *model.Paper) *entity.Paper {
	if p == nil {
		return nil
	}

	var deletedAt *time.Time
	if p.DeletedAt.Valid {
		t := p.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		updatedAt = &t
	}

	var metadata map[string]interface{}
	if len(p.Metadata) > 0 {
		// Ignore unmarshal errors: malformed rows degrade to no metadata.
		_ = json.Unmarshal(p.Metadata, &metadata)
	}

	return &entity.Paper{
		Id:            p.Id,
		ChatSessionId: p.ChatSessionId,
		UserId:        p.UserId,
		Title:         p.Title,
		SourceType:    p.SourceType,
		Content:       p.Content,
		Metadata:      metadata,
		Status:        p.Status,
		FailureReason: p.FailureReason,
		Attempt:       p.Attempt,
		Position:      p.Position,
		ChunkCount:    p.ChunkCount,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     updatedAt,
		DeletedAt:     deletedAt,
		IsDeleted:     p.DeletedAt.Valid,
	}
}

func (m *PaperMapper) ToModel(p *entity.Paper) *model.Paper {
	if p == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if p.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *p.DeletedAt, Valid: true}
	} else if p.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if p.UpdatedAt != nil {
		updatedAt = *p.UpdatedAt
	}

	var metadata datatypes.JSON
	if p.Metadata != nil {
		if raw, err := json.Marshal(p.Metadata); err == nil {
			metadata = datatypes.JSON(raw)
		}
	}

	return &model.Paper{
		Id:            p.Id,
		ChatSessionId: p.ChatSessionId,
		UserId:        p.UserId,
		Title:         p.Title,
		SourceType:    p.SourceType,
		Content:       p.Content,
		Metadata:      metadata,
		Status:        p.Status,
		FailureReason: p.FailureReason,
		Attempt:       p.Attempt,
		Position:      p.Position,
		ChunkCount:    p.ChunkCount,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     updatedAt,
		DeletedAt:     deletedAt,
	}
}

// Chunk Mappers

func (m *PaperMapper) ChunkToEntity(c *model.PaperChunk) *entity.PaperChunk {
	if c == nil {
		return nil
	}
	return &entity.PaperChunk{
		Id:         c.Id,
		PaperId:    c.PaperId,
		ChunkIndex: c.ChunkIndex,
		Content:    c.Content,
		Embedding:  c.Embedding.Slice(),
		CreatedAt:  c.CreatedAt,
	}
}

func (m *PaperMapper) ChunkToModel(c *entity.PaperChunk) *model.PaperChunk {
	if c == nil {
		return nil
	}
	return &model.PaperChunk{
		Id:         c.Id,
		PaperId:    c.PaperId,
		ChunkIndex: c.ChunkIndex,
		Content:    c.Content,
		Embedding:  pgvector.NewVector(c.Embedding),
		CreatedAt:  c.CreatedAt,
	}
}

func (m *PaperMapper) ChunksToEntities(chunks []*model.PaperChunk) []*entity.PaperChunk {
	entities := make([]*entity.PaperChunk, len(chunks))
	for i, c := range chunks {
		entities[i] = m.ChunkToEntity(c)
	}
	return entities
}

func (m *PaperMapper) ChunksToModels(chunks []*entity.PaperChunk) []*model.PaperChunk {
	models := make([]*model.PaperChunk, len(chunks))
	for i, c := range chunks {
		models[i] = m.ChunkToModel(c)
	}
	return models
}
