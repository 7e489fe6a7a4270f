package memory

import (
	"sync"
	"time"

	"ai-paperchat-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

// TranscriptLog is the ephemeral fallback tier for chat messages. Entries
// live only in this process: they keep a degraded session conversational
// while the durable store is unreachable and are allowed to drop on restart.
type TranscriptLog struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewTranscriptLog() *TranscriptLog {
	c := cache.New(cache.NoExpiration, 10*time.Minute)
	return &TranscriptLog{
		cache: c,
	}
}

// Append adds a message to the session's fallback log. The read-modify-write
// runs under the log's own lock; go-cache only guards single operations.
func (l *TranscriptLog) Append(msg *entity.ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := msg.ChatSessionId.String()
	var entries []*entity.ChatMessage
	if x, found := l.cache.Get(key); found {
		entries = x.([]*entity.ChatMessage)
	}
	entries = append(entries, msg)
	l.cache.Set(key, entries, cache.NoExpiration)
}

// BySession returns a copy of the session's fallback entries.
func (l *TranscriptLog) BySession(sessionID string) []*entity.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	if x, found := l.cache.Get(sessionID); found {
		entries := x.([]*entity.ChatMessage)
		out := make([]*entity.ChatMessage, len(entries))
		copy(out, entries)
		return out
	}
	return nil
}
