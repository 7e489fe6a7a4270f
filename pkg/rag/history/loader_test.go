package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"ai-paperchat-be/internal/constant"
	"ai-paperchat-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTranscripts struct {
	rows     []*entity.ChatMessage
	degraded bool
	err      error
}

func (s *stubTranscripts) History(ctx context.Context, sessionID uuid.UUID) ([]*entity.ChatMessage, bool, error) {
	return s.rows, s.degraded, s.err
}

func transcriptOf(n int) []*entity.ChatMessage {
	rows := make([]*entity.ChatMessage, 0, n)
	for i := 0; i < n; i++ {
		role := constant.ChatMessageRoleUser
		if i%2 == 1 {
			role = constant.ChatMessageRoleAssistant
		}
		rows = append(rows, &entity.ChatMessage{
			Id:   uuid.New(),
			Role: role,
			Chat: fmt.Sprintf("turn %d", i),
			Seq:  int64(i + 1),
		})
	}
	return rows
}

func newTestLoader(stub *stubTranscripts, window int) *Loader {
	return NewLoader(stub, nil, window, log.New(io.Discard, "", 0))
}

func TestLoader_KeepsMostRecentWindowInOrder(t *testing.T) {
	stub := &stubTranscripts{rows: transcriptOf(15)}
	loader := newTestLoader(stub, 10)

	messages, degraded, err := loader.Recent(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, messages, 10)

	assert.Equal(t, "turn 5", messages[0].Content, "oldest surviving turn starts the window")
	assert.Equal(t, "turn 14", messages[9].Content, "latest turn ends the window")
}

func TestLoader_ShortTranscriptPassesThrough(t *testing.T) {
	stub := &stubTranscripts{rows: transcriptOf(3)}
	loader := newTestLoader(stub, 10)

	messages, _, err := loader.Recent(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, constant.ChatMessageRoleUser, messages[0].Role)
	assert.Equal(t, constant.ChatMessageRoleAssistant, messages[1].Role)
}

func TestLoader_EmptySession(t *testing.T) {
	loader := newTestLoader(&stubTranscripts{}, 10)

	messages, degraded, err := loader.Recent(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Empty(t, messages)
}

func TestLoader_PropagatesDegradedFlag(t *testing.T) {
	stub := &stubTranscripts{rows: transcriptOf(2), degraded: true}
	loader := newTestLoader(stub, 10)

	messages, degraded, err := loader.Recent(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Len(t, messages, 2)
}

func TestLoader_PropagatesError(t *testing.T) {
	stub := &stubTranscripts{err: errors.New("exploded")}
	loader := newTestLoader(stub, 10)

	_, _, err := loader.Recent(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestLoader_InvalidateWithoutRedisIsNoop(t *testing.T) {
	loader := newTestLoader(&stubTranscripts{}, 10)
	loader.Invalidate(context.Background(), uuid.New())
}
