package entity

import (
	"time"

	"github.com/google/uuid"
)

// RAGState is the per-session retrieval toggle. EnabledBy and EnabledAt are
// both set when Enabled is true and both nil when it is false; records are
// replaced wholesale so readers never observe a half-updated state.
// Held in memory only: a restart falls back to the disabled default.
type RAGState struct {
	SessionID uuid.UUID
	Enabled   bool
	EnabledBy *uuid.UUID
	EnabledAt *time.Time
}
