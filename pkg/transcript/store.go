// Package transcript persists chat messages durably when it can and keeps
// the conversation alive in memory when it cannot. The durable store is
// trusted for correctness but not for availability.
package transcript

import (
	"context"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/repository/contract"
	"ai-paperchat-be/internal/repository/memory"
	"ai-paperchat-be/internal/repository/specification"

	"github.com/google/uuid"
)

// Result reports where a message landed.
type Result struct {
	Durable bool
}

type Store struct {
	durable  contract.ChatMessageRepository
	fallback *memory.TranscriptLog
	logger   *log.Logger

	// seq orders messages within this process. Seeded from wall clock so
	// sequences from a restarted process still sort after the previous
	// process's durable rows.
	seq      atomic.Int64
	degraded atomic.Bool
}

func NewStore(durable contract.ChatMessageRepository, fallback *memory.TranscriptLog, logger *log.Logger) *Store {
	s := &Store{
		durable:  durable,
		fallback: fallback,
		logger:   logger,
	}
	s.seq.Store(time.Now().UnixNano())
	return s
}

// nextSeq hands out the next causal sequence number.
func (s *Store) nextSeq() int64 {
	return s.seq.Add(1)
}

// Persist writes the message durably, falling back to the in-memory log
// when the durable tier errors. Fallback is not a failure: the message is
// accepted, the result says Durable=false, and the store flips degraded.
func (s *Store) Persist(ctx context.Context, msg *entity.ChatMessage) (Result, error) {
	if msg.Seq == 0 {
		msg.Seq = s.nextSeq()
	}
	msg.Durable = true

	if err := s.durable.Create(ctx, msg); err != nil {
		msg.Durable = false
		s.fallback.Append(msg)
		if !s.degraded.Swap(true) {
			s.logger.Printf("[TRANSCRIPT] Durable tier down, falling back to memory (session %s): %v", msg.ChatSessionId, err)
		}
		return Result{Durable: false}, nil
	}

	if s.degraded.Swap(false) {
		s.logger.Printf("[TRANSCRIPT] Durable tier recovered (session %s)", msg.ChatSessionId)
	}
	return Result{Durable: true}, nil
}

// History merges both tiers into one causally ordered, id-deduplicated
// transcript. A durable read failure degrades to the fallback entries alone
// rather than erroring: a reachable partial history beats none.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID) ([]*entity.ChatMessage, bool, error) {
	degraded := false

	durableRows, err := s.durable.FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionID},
		specification.OrderBy{Field: "seq"},
	)
	if err != nil {
		s.logger.Printf("[TRANSCRIPT] Durable history read failed for session %s: %v", sessionID, err)
		degraded = true
		durableRows = nil
	}

	fallbackRows := s.fallback.BySession(sessionID.String())

	seen := make(map[uuid.UUID]struct{}, len(durableRows)+len(fallbackRows))
	merged := make([]*entity.ChatMessage, 0, len(durableRows)+len(fallbackRows))
	for _, rows := range [][]*entity.ChatMessage{durableRows, fallbackRows} {
		for _, m := range rows {
			if _, dup := seen[m.Id]; dup {
				continue
			}
			seen[m.Id] = struct{}{}
			merged = append(merged, m)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Seq < merged[j].Seq
	})
	return merged, degraded, nil
}

// Degraded reports whether the last durable write attempt failed.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}
