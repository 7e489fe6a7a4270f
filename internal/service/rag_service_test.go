package service

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/repository/memory"
	"ai-paperchat-be/pkg/rag/fault"
	"ai-paperchat-be/pkg/rag/ingest"
	"ai-paperchat-be/pkg/rag/state"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ragHarness struct {
	svc     IRAGService
	uow     *fakeUow
	state   *state.Manager
	tracker *ingest.Tracker

	userId    uuid.UUID
	sessionId uuid.UUID
}

func newRAGHarness(t *testing.T) *ragHarness {
	t.Helper()
	discard := log.New(io.Discard, "", 0)

	uow := &fakeUow{
		users:    &fakeUserRepo{rows: make(map[uuid.UUID]*entity.User)},
		sessions: newFakeSessionRepo(),
		messages: &fakeChatMessageRepo{},
		papers:   newFakePaperRepo(),
		chunks:   &fakeChunkRepo{},
	}
	stateManager := state.NewManager(memory.NewRAGStateRepository(), discard)
	tracker := ingest.NewTracker(discard)

	h := &ragHarness{
		svc:       NewRAGService(&fakeUowFactory{uow: uow}, stateManager, tracker),
		uow:       uow,
		state:     stateManager,
		tracker:   tracker,
		userId:    uuid.New(),
		sessionId: uuid.New(),
	}
	require.NoError(t, uow.sessions.Create(context.Background(), &entity.ChatSession{
		Id:        h.sessionId,
		UserId:    h.userId,
		Title:     "rag session",
		CreatedAt: time.Now(),
	}))
	return h
}

func TestRAGEnableDisableRoundTrip(t *testing.T) {
	h := newRAGHarness(t)
	require.NoError(t, h.uow.users.Create(context.Background(), &entity.User{
		Id:       h.userId,
		FullName: "Ada Lovelace",
	}))

	status, err := h.svc.Enable(context.Background(), h.userId, h.sessionId)
	require.NoError(t, err)
	assert.True(t, status.IsRagEnabled)
	require.NotNil(t, status.EnabledBy)
	assert.Equal(t, h.userId, *status.EnabledBy)
	assert.NotNil(t, status.RagEnabledAt)
	assert.Equal(t, "Ada Lovelace", status.EnabledByName)

	status, err = h.svc.Disable(context.Background(), h.userId, h.sessionId)
	require.NoError(t, err)
	assert.False(t, status.IsRagEnabled)
	assert.Nil(t, status.EnabledBy)
	assert.Nil(t, status.RagEnabledAt)
	assert.Empty(t, status.EnabledByName)
}

func TestRAGStatusDefaultsToDisabled(t *testing.T) {
	h := newRAGHarness(t)

	status, err := h.svc.Status(context.Background(), h.userId, h.sessionId)
	require.NoError(t, err)
	assert.False(t, status.IsRagEnabled)
	assert.Zero(t, status.TotalPapers)
	assert.Zero(t, status.ProcessedPapers)
}

func TestRAGStatusCountsPapers(t *testing.T) {
	h := newRAGHarness(t)

	readyID, pendingID, failedID := uuid.New(), uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{readyID, pendingID, failedID} {
		_, err := h.tracker.Register(h.sessionId, id)
		require.NoError(t, err)
	}
	require.NoError(t, h.tracker.MarkEmbedding(readyID))
	require.NoError(t, h.tracker.MarkReady(readyID, 4))
	require.NoError(t, h.tracker.MarkEmbedding(failedID))
	require.NoError(t, h.tracker.MarkFailed(failedID, "embedding provider failed"))

	status, err := h.svc.Status(context.Background(), h.userId, h.sessionId)
	require.NoError(t, err)
	assert.Equal(t, 3, status.TotalPapers)
	assert.Equal(t, 1, status.ProcessedPapers, "only ready papers count as processed")
}

func TestRAGEnableMissingUserLeavesNameEmpty(t *testing.T) {
	h := newRAGHarness(t)

	status, err := h.svc.Enable(context.Background(), h.userId, h.sessionId)
	require.NoError(t, err)
	assert.True(t, status.IsRagEnabled)
	assert.Empty(t, status.EnabledByName)
}

func TestRAGOpsRequireSessionOwnership(t *testing.T) {
	h := newRAGHarness(t)
	stranger := uuid.New()

	_, err := h.svc.Enable(context.Background(), stranger, h.sessionId)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindNotFound))

	_, err = h.svc.Disable(context.Background(), stranger, h.sessionId)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindNotFound))

	_, err = h.svc.Status(context.Background(), stranger, uuid.New())
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}
