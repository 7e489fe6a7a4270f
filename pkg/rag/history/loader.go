package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cacheTTL = 2 * time.Minute

// TranscriptReader is the slice of the transcript store the loader needs.
type TranscriptReader interface {
	History(ctx context.Context, sessionID uuid.UUID) ([]*entity.ChatMessage, bool, error)
}

// Loader provides the bounded conversation window handed to the model.
// Truncation keeps the most recent turns; the result stays chronological.
type Loader struct {
	transcripts TranscriptReader
	rdb         *redis.Client
	window      int
	logger      *log.Logger
}

// NewLoader creates a history loader. rdb may be nil; caching is then off.
func NewLoader(transcripts TranscriptReader, rdb *redis.Client, window int, logger *log.Logger) *Loader {
	if window <= 0 {
		window = 10
	}
	return &Loader{
		transcripts: transcripts,
		rdb:         rdb,
		window:      window,
		logger:      logger,
	}
}

func cacheKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("chat:history:%s", sessionID)
}

// Recent returns up to window messages for the session, oldest first, plus
// whether the underlying read was degraded. Cache errors are logged and
// ignored; redis must never break a chat.
func (l *Loader) Recent(ctx context.Context, sessionID uuid.UUID) ([]llm.Message, bool, error) {
	if l.rdb != nil {
		raw, err := l.rdb.Get(ctx, cacheKey(sessionID)).Result()
		if err == nil {
			var cached []llm.Message
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return cached, false, nil
			}
		} else if err != redis.Nil {
			l.logger.Printf("[HISTORY] Cache read failed for session %s: %v", sessionID, err)
		}
	}

	transcript, degraded, err := l.transcripts.History(ctx, sessionID)
	if err != nil {
		return nil, degraded, err
	}

	if len(transcript) > l.window {
		transcript = transcript[len(transcript)-l.window:]
	}

	messages := make([]llm.Message, 0, len(transcript))
	for _, m := range transcript {
		messages = append(messages, llm.Message{
			Role:    m.Role,
			Content: m.Chat,
		})
	}

	// degraded windows stay uncached: the durable rows may reappear
	if l.rdb != nil && !degraded {
		if payload, jsonErr := json.Marshal(messages); jsonErr == nil {
			if err := l.rdb.Set(ctx, cacheKey(sessionID), payload, cacheTTL).Err(); err != nil {
				l.logger.Printf("[HISTORY] Cache write failed for session %s: %v", sessionID, err)
			}
		}
	}

	return messages, degraded, nil
}

// Invalidate drops the cached window after new messages land.
func (l *Loader) Invalidate(ctx context.Context, sessionID uuid.UUID) {
	if l.rdb == nil {
		return
	}
	if err := l.rdb.Del(ctx, cacheKey(sessionID)).Err(); err != nil {
		l.logger.Printf("[HISTORY] Cache invalidate failed for session %s: %v", sessionID, err)
	}
}
