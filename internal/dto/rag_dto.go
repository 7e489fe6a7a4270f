package dto

import (
	"time"

	"github.com/google/uuid"
)

// RAGStatusResponse is the composed session RAG view: the volatile toggle
// plus live paper counts. enabled_by/rag_enabled_at are null exactly when
// is_rag_enabled is false.
type RAGStatusResponse struct {
	IsRagEnabled    bool       `json:"is_rag_enabled"`
	EnabledBy       *uuid.UUID `json:"enabled_by,omitempty"`
	EnabledByName   string     `json:"enabled_by_name,omitempty"`
	RagEnabledAt    *time.Time `json:"rag_enabled_at,omitempty"`
	TotalPapers     int        `json:"total_papers"`
	ProcessedPapers int        `json:"processed_papers"`
}
