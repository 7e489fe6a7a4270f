package entity

import (
	"time"

	"github.com/google/uuid"
)

// Paper is a document attached to a chat session for grounding. Status moves
// pending -> embedding -> ready|failed within one attempt; ready and failed
// are terminal. A retry bumps Attempt and starts over at pending instead of
// resurrecting the failed attempt.
type Paper struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	UserId        uuid.UUID
	Title         string
	SourceType    string
	Content       string
	Metadata      map[string]interface{}
	Status        string
	FailureReason string
	Attempt       int
	// Position is the per-session attach order. Retrieval ties are broken
	// by Position, then chunk index.
	Position   int
	ChunkCount int
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	DeletedAt  *time.Time
	IsDeleted  bool
}

// PaperChunk is an immutable slice of a ready paper, written durably in the
// same transaction that marks its paper ready.
type PaperChunk struct {
	Id         uuid.UUID
	PaperId    uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}
