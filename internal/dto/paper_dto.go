package dto

import (
	"time"

	"github.com/google/uuid"
)

type AttachPaperRequest struct {
	ChatSessionId uuid.UUID              `json:"chat_session_id" validate:"required"`
	Title         string                 `json:"title" validate:"required,max=300"`
	SourceType    string                 `json:"source_type" validate:"required,oneof=text pdf"`
	Content       string                 `json:"content" validate:"required"` // raw text, or base64 for pdf
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

type PaperResponse struct {
	Id            uuid.UUID  `json:"id"`
	ChatSessionId uuid.UUID  `json:"chat_session_id"`
	Title         string     `json:"title"`
	SourceType    string     `json:"source_type"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	Attempt       int        `json:"attempt"`
	Position      int        `json:"position"`
	ChunkCount    int        `json:"chunk_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
}

// PublishIngestPaperMessage is the job payload placed on the ingestion topic.
type PublishIngestPaperMessage struct {
	PaperId uuid.UUID `json:"paper_id"`
}

type SemanticSearchResult struct {
	ChunkId    uuid.UUID `json:"chunk_id"`
	PaperId    uuid.UUID `json:"paper_id"`
	PaperTitle string    `json:"paper_title"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Similarity float64   `json:"similarity"`
}
