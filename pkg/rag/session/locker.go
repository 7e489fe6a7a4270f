package session

import (
	"context"
	"sync"

	"ai-paperchat-be/pkg/rag/fault"

	"github.com/google/uuid"
)

type slot struct {
	ch   chan struct{}
	refs int
}

// Locker serializes message handling per session. Different sessions never
// contend; a second send on the same session waits until the first releases
// or its context gives up.
type Locker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*slot
}

func NewLocker() *Locker {
	return &Locker{slots: make(map[uuid.UUID]*slot)}
}

// Acquire blocks until the session slot is free or ctx is done. On success
// it returns a release func that is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[sessionID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[sessionID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-s.ch
				l.put(sessionID, s)
			})
		}
		return release, nil
	case <-ctx.Done():
		l.put(sessionID, s)
		return nil, fault.Wrap(fault.KindSessionBusy, "session is busy handling another message", ctx.Err()).
			WithHint("wait for the previous message to finish, then retry").
			AsRetryable()
	}
}

// put drops one reference and frees the slot when nobody is waiting, so the
// map does not grow with every session ever seen.
func (l *Locker) put(id uuid.UUID, s *slot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, id)
	}
	l.mu.Unlock()
}
