package events

import (
	"time"

	"github.com/google/uuid"
)

// Paper lifecycle event types. Subjects on the bus are "events.<type>".
const (
	PaperReadyEventType  = "paper_ready"
	PaperFailedEventType = "paper_failed"
)

// NewPaperReadyEvent announces that a paper finished embedding and its
// chunks serve retrieval.
func NewPaperReadyEvent(paperID, sessionID, userID uuid.UUID, title string, chunkCount, attempt int) Event {
	return BaseEvent{
		Type: PaperReadyEventType,
		Data: map[string]interface{}{
			"paper_id":        paperID.String(),
			"chat_session_id": sessionID.String(),
			"user_id":         userID.String(),
			"title":           title,
			"status":          "ready",
			"chunk_count":     chunkCount,
			"attempt":         attempt,
		},
		OccurredAt: time.Now(),
	}
}

// NewPaperFailedEvent announces a terminally failed processing attempt.
func NewPaperFailedEvent(paperID, sessionID, userID uuid.UUID, title, reason string, attempt int) Event {
	return BaseEvent{
		Type: PaperFailedEventType,
		Data: map[string]interface{}{
			"paper_id":        paperID.String(),
			"chat_session_id": sessionID.String(),
			"user_id":         userID.String(),
			"title":           title,
			"status":          "failed",
			"reason":          reason,
			"attempt":         attempt,
		},
		OccurredAt: time.Now(),
	}
}
