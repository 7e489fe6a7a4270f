package transcript

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"ai-paperchat-be/internal/constant"
	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/repository/memory"
	"ai-paperchat-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyMessageRepo is an in-memory ChatMessageRepository whose failure mode
// is flipped per test.
type flakyMessageRepo struct {
	rows      []*entity.ChatMessage
	createErr error
	findErr   error
}

func (r *flakyMessageRepo) Create(ctx context.Context, message *entity.ChatMessage) error {
	if r.createErr != nil {
		return r.createErr
	}
	cp := *message
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *flakyMessageRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatMessage, error) {
	return nil, nil
}

func (r *flakyMessageRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	out := make([]*entity.ChatMessage, len(r.rows))
	copy(out, r.rows)
	return out, nil
}

func (r *flakyMessageRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.rows)), nil
}

func newTestStore(repo *flakyMessageRepo) (*Store, *memory.TranscriptLog) {
	fallback := memory.NewTranscriptLog()
	return NewStore(repo, fallback, log.New(io.Discard, "", 0)), fallback
}

func userMsg(sessionID uuid.UUID, text string) *entity.ChatMessage {
	return &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: sessionID,
		Role:          constant.ChatMessageRoleUser,
		Chat:          text,
	}
}

func TestStore_PersistDurable(t *testing.T) {
	repo := &flakyMessageRepo{}
	store, fallback := newTestStore(repo)
	session := uuid.New()

	msg := userMsg(session, "hello")
	res, err := store.Persist(context.Background(), msg)
	require.NoError(t, err)

	assert.True(t, res.Durable)
	assert.True(t, msg.Durable)
	assert.NotZero(t, msg.Seq, "store assigns the causal sequence")
	assert.Len(t, repo.rows, 1)
	assert.Empty(t, fallback.BySession(session.String()))
	assert.False(t, store.Degraded())
}

func TestStore_PersistFallsBackOnDurableFailure(t *testing.T) {
	repo := &flakyMessageRepo{createErr: errors.New("connection refused")}
	store, fallback := newTestStore(repo)
	session := uuid.New()

	msg := userMsg(session, "still here?")
	res, err := store.Persist(context.Background(), msg)

	require.NoError(t, err, "fallback acceptance is not an error")
	assert.False(t, res.Durable)
	assert.False(t, msg.Durable)
	assert.True(t, store.Degraded())

	kept := fallback.BySession(session.String())
	require.Len(t, kept, 1)
	assert.Equal(t, msg.Id, kept[0].Id)
}

func TestStore_DurableSuccessClearsDegraded(t *testing.T) {
	repo := &flakyMessageRepo{createErr: errors.New("down")}
	store, _ := newTestStore(repo)
	session := uuid.New()

	_, err := store.Persist(context.Background(), userMsg(session, "a"))
	require.NoError(t, err)
	require.True(t, store.Degraded())

	repo.createErr = nil
	res, err := store.Persist(context.Background(), userMsg(session, "b"))
	require.NoError(t, err)
	assert.True(t, res.Durable)
	assert.False(t, store.Degraded())
}

func TestStore_SeqIsMonotonicAndKeepsPreset(t *testing.T) {
	repo := &flakyMessageRepo{}
	store, _ := newTestStore(repo)
	session := uuid.New()

	first := userMsg(session, "one")
	second := userMsg(session, "two")
	_, err := store.Persist(context.Background(), first)
	require.NoError(t, err)
	_, err = store.Persist(context.Background(), second)
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)

	preset := userMsg(session, "three")
	preset.Seq = 42
	_, err = store.Persist(context.Background(), preset)
	require.NoError(t, err)
	assert.EqualValues(t, 42, preset.Seq)
}

func TestStore_HistoryMergesTiersInCausalOrder(t *testing.T) {
	repo := &flakyMessageRepo{}
	store, _ := newTestStore(repo)
	session := uuid.New()

	first := userMsg(session, "durable one")
	_, err := store.Persist(context.Background(), first)
	require.NoError(t, err)

	repo.createErr = errors.New("db down")
	dropped := userMsg(session, "ephemeral two")
	_, err = store.Persist(context.Background(), dropped)
	require.NoError(t, err)

	repo.createErr = nil
	third := userMsg(session, "durable three")
	_, err = store.Persist(context.Background(), third)
	require.NoError(t, err)

	history, degraded, err := store.History(context.Background(), session)
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, history, 3)
	assert.Equal(t, []string{"durable one", "ephemeral two", "durable three"},
		[]string{history[0].Chat, history[1].Chat, history[2].Chat})
	assert.False(t, history[1].Durable)
}

func TestStore_HistoryDeduplicatesById(t *testing.T) {
	repo := &flakyMessageRepo{}
	store, fallback := newTestStore(repo)
	session := uuid.New()

	msg := userMsg(session, "once")
	_, err := store.Persist(context.Background(), msg)
	require.NoError(t, err)

	// same id also present in the fallback tier
	dup := *msg
	fallback.Append(&dup)

	history, _, err := store.History(context.Background(), session)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestStore_HistorySurvivesDurableReadFailure(t *testing.T) {
	repo := &flakyMessageRepo{createErr: errors.New("down")}
	store, _ := newTestStore(repo)
	session := uuid.New()

	_, err := store.Persist(context.Background(), userMsg(session, "kept in memory"))
	require.NoError(t, err)

	repo.findErr = errors.New("read timeout")
	history, degraded, err := store.History(context.Background(), session)
	require.NoError(t, err)
	assert.True(t, degraded)
	require.Len(t, history, 1)
	assert.Equal(t, "kept in memory", history[0].Chat)
}
