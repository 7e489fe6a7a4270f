package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"ai-paperchat-be/internal/constant"
	"ai-paperchat-be/internal/dto"
	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/repository/contract"
	"ai-paperchat-be/internal/repository/specification"
	"ai-paperchat-be/pkg/rag/fault"
	"ai-paperchat-be/pkg/rag/index"
	"ai-paperchat-be/pkg/rag/ingest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, append([]byte(nil), payload...))
	return nil
}

func (p *fakePublisher) jobs(t *testing.T) []dto.PublishIngestPaperMessage {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]dto.PublishIngestPaperMessage, 0, len(p.payloads))
	for _, raw := range p.payloads {
		var job dto.PublishIngestPaperMessage
		require.NoError(t, json.Unmarshal(raw, &job))
		out = append(out, job)
	}
	return out
}

type paperHarness struct {
	svc       IPaperService
	uow       *fakeUow
	publisher *fakePublisher
	tracker   *ingest.Tracker
	index     *index.Index

	userId    uuid.UUID
	sessionId uuid.UUID
}

func newPaperHarness(t *testing.T) *paperHarness {
	t.Helper()
	discard := log.New(io.Discard, "", 0)

	uow := &fakeUow{
		users:    &fakeUserRepo{rows: make(map[uuid.UUID]*entity.User)},
		sessions: newFakeSessionRepo(),
		messages: &fakeChatMessageRepo{},
		papers:   newFakePaperRepo(),
		chunks:   &fakeChunkRepo{},
	}
	tracker := ingest.NewTracker(discard)
	searchIndex := index.NewIndex(tracker, &fakeChatEmbedder{}, nil, discard)
	publisher := &fakePublisher{}

	h := &paperHarness{
		svc:       NewPaperService(&fakeUowFactory{uow: uow}, publisher, &fakeChatEmbedder{}, tracker, searchIndex, 0.35, 0),
		uow:       uow,
		publisher: publisher,
		tracker:   tracker,
		index:     searchIndex,
		userId:    uuid.New(),
		sessionId: uuid.New(),
	}
	require.NoError(t, uow.sessions.Create(context.Background(), &entity.ChatSession{
		Id:        h.sessionId,
		UserId:    h.userId,
		Title:     "reading list",
		CreatedAt: time.Now(),
	}))
	return h
}

func (h *paperHarness) attachText(t *testing.T, title, content string) *dto.PaperResponse {
	t.Helper()
	resp, err := h.svc.Attach(context.Background(), h.userId, &dto.AttachPaperRequest{
		ChatSessionId: h.sessionId,
		Title:         title,
		SourceType:    constant.PaperSourceText,
		Content:       content,
	})
	require.NoError(t, err)
	return resp
}

func TestAttach_TextPaperIsPendingAndEnqueued(t *testing.T) {
	h := newPaperHarness(t)

	resp := h.attachText(t, "attention is all you need", "the transformer architecture ...")

	assert.Equal(t, constant.PaperStatusPending, resp.Status)
	assert.Equal(t, 1, resp.Attempt)
	assert.Equal(t, 1, resp.Position)

	stored, err := h.uow.papers.FindOne(context.Background(), specification.ByID{ID: resp.Id})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, constant.PaperStatusPending, stored.Status)
	assert.Equal(t, h.userId, stored.UserId)

	jobs := h.publisher.jobs(t)
	require.Len(t, jobs, 1)
	assert.Equal(t, resp.Id, jobs[0].PaperId)

	rec, tracked := h.tracker.Get(resp.Id)
	require.True(t, tracked)
	assert.Equal(t, constant.PaperStatusPending, rec.Status)

	// the next attach in the same session takes the next position
	second := h.attachText(t, "bert", "bidirectional encoders ...")
	assert.Equal(t, 2, second.Position)
}

func TestAttach_EmptyContentRejected(t *testing.T) {
	h := newPaperHarness(t)

	_, err := h.svc.Attach(context.Background(), h.userId, &dto.AttachPaperRequest{
		ChatSessionId: h.sessionId,
		Title:         "empty",
		SourceType:    constant.PaperSourceText,
		Content:       "   \n\t  ",
	})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindValidation))

	total, _ := h.tracker.Counts(h.sessionId)
	assert.Zero(t, total, "a rejected attach leaves no tracker record")
	assert.Empty(t, h.publisher.jobs(t))
}

func TestAttach_BrokenPDFRejected(t *testing.T) {
	h := newPaperHarness(t)

	_, err := h.svc.Attach(context.Background(), h.userId, &dto.AttachPaperRequest{
		ChatSessionId: h.sessionId,
		Title:         "scan",
		SourceType:    constant.PaperSourcePDF,
		Content:       "definitely !!! not ??? base64",
	})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindIngestionFailed))

	papers, _ := h.uow.papers.FindAll(context.Background())
	assert.Empty(t, papers)
}

func TestAttach_UnknownSessionIsNotFound(t *testing.T) {
	h := newPaperHarness(t)

	_, err := h.svc.Attach(context.Background(), h.userId, &dto.AttachPaperRequest{
		ChatSessionId: uuid.New(),
		Title:         "orphan",
		SourceType:    constant.PaperSourceText,
		Content:       "some text",
	})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}

func TestAttach_EnqueueFailureFailsThePaper(t *testing.T) {
	h := newPaperHarness(t)
	h.publisher.err = errors.New("broker unreachable")

	_, err := h.svc.Attach(context.Background(), h.userId, &dto.AttachPaperRequest{
		ChatSessionId: h.sessionId,
		Title:         "stranded",
		SourceType:    constant.PaperSourceText,
		Content:       "some text",
	})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindIngestionFailed))
	assert.True(t, fault.IsRetryable(err), "the caller may retry once the queue is back")

	// the paper must not sit pending with no job on the bus
	papers, _ := h.uow.papers.FindAll(context.Background())
	require.Len(t, papers, 1)
	assert.Equal(t, constant.PaperStatusFailed, papers[0].Status)
	assert.NotEmpty(t, papers[0].FailureReason)

	rec, tracked := h.tracker.Get(papers[0].Id)
	require.True(t, tracked)
	assert.Equal(t, constant.PaperStatusFailed, rec.Status)
}

func TestRetry_FailedPaperOpensFreshAttempt(t *testing.T) {
	h := newPaperHarness(t)

	resp := h.attachText(t, "flaky", "content that will fail")
	require.NoError(t, h.tracker.MarkEmbedding(resp.Id))
	require.NoError(t, h.tracker.MarkFailed(resp.Id, "embedding provider failed"))

	retried, err := h.svc.Retry(context.Background(), h.userId, resp.Id)
	require.NoError(t, err)

	assert.Equal(t, constant.PaperStatusPending, retried.Status)
	assert.Equal(t, 2, retried.Attempt)
	assert.Equal(t, resp.Position, retried.Position, "a retry keeps the attach position")
	assert.Empty(t, retried.FailureReason)

	jobs := h.publisher.jobs(t)
	require.Len(t, jobs, 2, "attach job plus retry job")
	assert.Equal(t, resp.Id, jobs[1].PaperId)
}

func TestRetry_NonFailedPaperRejected(t *testing.T) {
	h := newPaperHarness(t)
	resp := h.attachText(t, "in flight", "still processing")

	_, err := h.svc.Retry(context.Background(), h.userId, resp.Id)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindValidation))
}

func TestRetry_ForeignPaperIsNotFound(t *testing.T) {
	h := newPaperHarness(t)
	resp := h.attachText(t, "mine", "content")

	_, err := h.svc.Retry(context.Background(), uuid.New(), resp.Id)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}

func TestRetry_UntrackedFailedRowIsReseeded(t *testing.T) {
	h := newPaperHarness(t)

	// A failed row that survived a restart: durable truth without a tracker
	// record behind it.
	paperID := uuid.New()
	require.NoError(t, h.uow.papers.Create(context.Background(), &entity.Paper{
		Id:            paperID,
		ChatSessionId: h.sessionId,
		UserId:        h.userId,
		Title:         "orphaned row",
		Status:        constant.PaperStatusFailed,
		FailureReason: "embedding provider failed",
		Attempt:       2,
		Position:      7,
	}))

	retried, err := h.svc.Retry(context.Background(), h.userId, paperID)
	require.NoError(t, err)
	assert.Equal(t, 3, retried.Attempt)
	assert.Equal(t, 7, retried.Position)
	assert.Equal(t, constant.PaperStatusPending, retried.Status)

	jobs := h.publisher.jobs(t)
	require.Len(t, jobs, 1)
	assert.Equal(t, paperID, jobs[0].PaperId)
}

func TestList_TrackerViewWinsOverStaleRows(t *testing.T) {
	h := newPaperHarness(t)

	resp := h.attachText(t, "first", "content one")
	second := h.attachText(t, "second", "content two")

	// The pipeline finished the first paper but its row update is still in
	// flight; the tracker is ahead and the listing should show its view.
	require.NoError(t, h.tracker.MarkEmbedding(resp.Id))
	require.NoError(t, h.tracker.MarkReady(resp.Id, 9))

	papers, err := h.svc.List(context.Background(), h.userId, h.sessionId)
	require.NoError(t, err)
	require.Len(t, papers, 2)

	byId := map[uuid.UUID]*dto.PaperResponse{papers[0].Id: papers[0], papers[1].Id: papers[1]}
	assert.Equal(t, constant.PaperStatusReady, byId[resp.Id].Status)
	assert.Equal(t, 9, byId[resp.Id].ChunkCount)
	assert.Equal(t, constant.PaperStatusPending, byId[second.Id].Status)
}

func TestSemanticSearch_JoinsTitlesAndKeepsRank(t *testing.T) {
	h := newPaperHarness(t)

	paperID := uuid.New()
	require.NoError(t, h.uow.papers.Create(context.Background(), &entity.Paper{
		Id:            paperID,
		ChatSessionId: h.sessionId,
		UserId:        h.userId,
		Title:         "attention is all you need",
		Status:        constant.PaperStatusReady,
	}))
	h.uow.chunks.searchResults = []*contract.ScoredPaperChunk{
		{Chunk: &entity.PaperChunk{Id: uuid.New(), PaperId: paperID, ChunkIndex: 3, Content: "multi-head attention"}, Similarity: 0.91},
		{Chunk: &entity.PaperChunk{Id: uuid.New(), PaperId: paperID, ChunkIndex: 7, Content: "positional encoding"}, Similarity: 0.62},
	}

	results, err := h.svc.SemanticSearch(context.Background(), h.userId, h.sessionId, "how does attention work")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "attention is all you need", results[0].PaperTitle)
	assert.Equal(t, 0.91, results[0].Similarity)
	assert.Equal(t, "multi-head attention", results[0].Content)
	assert.Equal(t, 0.62, results[1].Similarity)
}

func TestSemanticSearch_EmptyQueryRejected(t *testing.T) {
	h := newPaperHarness(t)

	_, err := h.svc.SemanticSearch(context.Background(), h.userId, h.sessionId, "   ")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindValidation))
}

func TestSemanticSearch_NoMatchesIsEmptyNotError(t *testing.T) {
	h := newPaperHarness(t)

	results, err := h.svc.SemanticSearch(context.Background(), h.userId, h.sessionId, "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}
