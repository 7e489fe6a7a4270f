package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Title string `json:"title,omitempty"`
}

type CreateSessionResponse struct {
	Id uuid.UUID `json:"id"`
}

type GetAllSessionsResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type GetChatHistoryResponse struct {
	Id            uuid.UUID   `json:"id"`
	Role          string      `json:"role"`
	Chat          string      `json:"chat"`
	Route         string      `json:"route,omitempty"`
	Durable       bool        `json:"durable"`
	CitedChunkIds []uuid.UUID `json:"cited_chunk_ids,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// GetChatHistoryData wraps the transcript with the fallback-tier flag so
// clients can show a "history may be incomplete" notice.
type GetChatHistoryData struct {
	Messages            []GetChatHistoryResponse `json:"messages"`
	PersistenceDegraded bool                     `json:"persistence_degraded"`
}

type SendChatRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id" validate:"required"`
	Chat          string    `json:"chat" validate:"required"`
}

type SendChatResponseChat struct {
	Id            uuid.UUID   `json:"id"`
	Chat          string      `json:"chat"`
	Role          string      `json:"role"`
	Route         string      `json:"route,omitempty"`
	Durable       bool        `json:"durable"`
	CitedChunkIds []uuid.UUID `json:"cited_chunk_ids,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

type SendChatResponse struct {
	ChatSessionId       uuid.UUID             `json:"chat_session_id"`
	ChatSessionTitle    string                `json:"title"`
	Sent                *SendChatResponseChat `json:"sent"`
	Reply               *SendChatResponseChat `json:"reply"`
	Route               string                `json:"route,omitempty"`
	PersistenceDegraded bool                  `json:"persistence_degraded,omitempty"`
}
