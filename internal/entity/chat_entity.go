package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}

// ChatMessage is one immutable transcript turn. Seq is a process-local
// ordering key assigned at persist time; it keeps causal order stable when
// durable and ephemeral copies are merged and CreatedAt collides.
type ChatMessage struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Role          string
	Chat          string
	Route         string
	CitedChunkIds []uuid.UUID
	Durable       bool
	Seq           int64
	CreatedAt     time.Time
	UpdatedAt     *time.Time
	DeletedAt     *time.Time
	IsDeleted     bool
}
