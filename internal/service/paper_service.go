package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"ai-paperchat-be/internal/constant"
	"ai-paperchat-be/internal/dto"
	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/pkg/pdfextract"
	"ai-paperchat-be/internal/repository/specification"
	"ai-paperchat-be/internal/repository/unitofwork"
	"ai-paperchat-be/pkg/embedding"
	"ai-paperchat-be/pkg/rag/fault"
	"ai-paperchat-be/pkg/rag/index"
	"ai-paperchat-be/pkg/rag/ingest"
	"ai-paperchat-be/pkg/rag/session"

	"github.com/google/uuid"
)

type IPaperService interface {
	Attach(ctx context.Context, userId uuid.UUID, req *dto.AttachPaperRequest) (*dto.PaperResponse, error)
	Retry(ctx context.Context, userId uuid.UUID, paperId uuid.UUID) (*dto.PaperResponse, error)
	List(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.PaperResponse, error)
	SemanticSearch(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, query string) ([]*dto.SemanticSearchResult, error)
}

type paperService struct {
	uowFactory        unitofwork.RepositoryFactory
	publisherService  IPublisherService
	embeddingProvider embedding.EmbeddingProvider
	tracker           *ingest.Tracker
	searchIndex       *index.Index
	sessionManager    *session.Manager
	scoreThreshold    float64
	embedTimeout      time.Duration
}

func NewPaperService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	embeddingProvider embedding.EmbeddingProvider,
	tracker *ingest.Tracker,
	searchIndex *index.Index,
	scoreThreshold float64,
	embedTimeout time.Duration,
) IPaperService {
	return &paperService{
		uowFactory:        uowFactory,
		publisherService:  publisherService,
		embeddingProvider: embeddingProvider,
		tracker:           tracker,
		searchIndex:       searchIndex,
		sessionManager:    session.NewManager(),
		scoreThreshold:    scoreThreshold,
		embedTimeout:      embedTimeout,
	}
}

// Attach accepts a paper for a session, stores it as pending and enqueues the
// embedding job. The response carries the pending paper; readiness arrives
// later over the websocket.
func (c *paperService) Attach(ctx context.Context, userId uuid.UUID, req *dto.AttachPaperRequest) (*dto.PaperResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	if _, err := c.sessionManager.VerifyChatSession(ctx, uow, userId, req.ChatSessionId); err != nil {
		return nil, err
	}

	// 1. Resolve the raw text. PDFs arrive base64-encoded and are extracted
	// up front so a broken upload fails at attach, not inside the pipeline.
	content := req.Content
	if req.SourceType == constant.PaperSourcePDF {
		text, err := pdfextract.ExtractFromBase64(req.Content)
		if err != nil {
			return nil, fault.Wrap(fault.KindIngestionFailed, "could not extract text from pdf", err).
				WithHint("check that the upload is a valid, text-based PDF")
		}
		content = text
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fault.New(fault.KindValidation, "paper content is empty")
	}

	// 2. Claim the attach position, then write the durable row.
	paperId := uuid.New()
	position, err := c.tracker.Register(req.ChatSessionId, paperId)
	if err != nil {
		return nil, fault.Wrap(fault.KindInternal, "failed to track paper", err)
	}

	now := time.Now()
	paper := &entity.Paper{
		Id:            paperId,
		ChatSessionId: req.ChatSessionId,
		UserId:        userId,
		Title:         req.Title,
		SourceType:    req.SourceType,
		Content:       content,
		Metadata:      req.Metadata,
		Status:        constant.PaperStatusPending,
		Attempt:       1,
		Position:      position,
		CreatedAt:     now,
	}
	if err := uow.PaperRepository().Create(ctx, paper); err != nil {
		c.tracker.Forget(paperId)
		return nil, err
	}

	// 3. Enqueue the embedding job.
	if err := c.enqueue(ctx, uow, paper); err != nil {
		return nil, err
	}

	return paperToResponse(paper), nil
}

// Retry reopens a failed paper as a fresh attempt. Only failed papers
// qualify; everything else is either in flight or already serving queries.
func (c *paperService) Retry(ctx context.Context, userId uuid.UUID, paperId uuid.UUID) (*dto.PaperResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	paper, err := uow.PaperRepository().FindOne(ctx,
		specification.ByID{ID: paperId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, fault.New(fault.KindNotFound, "paper not found or access denied")
	}

	rec, tracked := c.tracker.Get(paperId)
	if !tracked {
		// The row survived a restart the tracker did not; reseed from it.
		c.tracker.Restore(recordFromPaper(paper))
		rec, _ = c.tracker.Get(paperId)
	}
	if rec.Status != constant.PaperStatusFailed {
		return nil, fault.New(fault.KindValidation,
			fmt.Sprintf("paper is %s, only failed papers can be retried", rec.Status))
	}

	attempt, err := c.tracker.NewAttempt(paperId)
	if err != nil {
		// Lost the race with a concurrent retry of the same paper.
		return nil, fault.Wrap(fault.KindValidation, "paper is no longer retryable", err)
	}

	// Chunks of the superseded attempt leave the index right away.
	c.searchIndex.Remove(paperId)

	now := time.Now()
	paper.Status = constant.PaperStatusPending
	paper.FailureReason = ""
	paper.Attempt = attempt
	paper.UpdatedAt = &now
	if err := uow.PaperRepository().Update(ctx, paper); err != nil {
		return nil, err
	}

	if err := c.enqueue(ctx, uow, paper); err != nil {
		return nil, err
	}

	return paperToResponse(paper), nil
}

// enqueue publishes the ingestion job. A paper whose job never reached the
// bus would sit pending forever, so a publish failure fails the attempt on
// the spot and leaves the paper retryable.
func (c *paperService) enqueue(ctx context.Context, uow unitofwork.UnitOfWork, paper *entity.Paper) error {
	job, err := json.Marshal(dto.PublishIngestPaperMessage{PaperId: paper.Id})
	if err != nil {
		return err
	}
	if err := c.publisherService.Publish(ctx, job); err != nil {
		reason := "failed to enqueue ingestion job"
		if terr := c.tracker.MarkFailed(paper.Id, reason); terr != nil {
			log.Printf("[ERROR] Failed to mark paper %s failed after enqueue error: %v", paper.Id, terr)
		}
		now := time.Now()
		paper.Status = constant.PaperStatusFailed
		paper.FailureReason = reason
		paper.UpdatedAt = &now
		if uerr := uow.PaperRepository().Update(ctx, paper); uerr != nil {
			log.Printf("[ERROR] Failed to persist enqueue failure for paper %s: %v", paper.Id, uerr)
		}
		return fault.Wrap(fault.KindIngestionFailed, reason, err).
			WithHint("retry the paper once the queue is back").
			AsRetryable()
	}
	return nil
}

// List returns the session's papers in attach order. The tracker's view wins
// over the durable row when both exist, it is ahead of the row mid-flight.
func (c *paperService) List(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.PaperResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	if _, err := c.sessionManager.VerifyChatSession(ctx, uow, userId, sessionId); err != nil {
		return nil, err
	}

	papers, err := uow.PaperRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "position"},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.PaperResponse, 0, len(papers))
	for _, paper := range papers {
		resp := paperToResponse(paper)
		if rec, ok := c.tracker.Get(paper.Id); ok {
			resp.Status = rec.Status
			resp.Attempt = rec.Attempt
			resp.ChunkCount = rec.ChunkCount
			resp.FailureReason = rec.FailureReason
		}
		response = append(response, resp)
	}
	return response, nil
}

// SemanticSearch runs a pgvector similarity scan over the session's ready
// chunks, independent of the chat flow.
func (c *paperService) SemanticSearch(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, query string) ([]*dto.SemanticSearchResult, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	if _, err := c.sessionManager.VerifyChatSession(ctx, uow, userId, sessionId); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fault.New(fault.KindValidation, "search query is empty")
	}

	embedCtx := ctx
	if c.embedTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, c.embedTimeout)
		defer cancel()
	}
	embeddingRes, err := c.embeddingProvider.Generate(embedCtx, query, constant.EmbeddingTaskQuery)
	if err != nil {
		return nil, fault.Wrap(fault.KindGenerationUnavailable, "failed to embed search query", err).
			WithHint("the embedding backend may be down, try again shortly").
			AsRetryable()
	}

	scored, err := uow.PaperChunkRepository().SearchSimilarWithScore(ctx, embeddingRes.Embedding.Values, 10, sessionId, c.scoreThreshold)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return []*dto.SemanticSearchResult{}, nil
	}

	// Join paper titles in one query.
	ids := make([]uuid.UUID, 0)
	seen := make(map[uuid.UUID]bool)
	for _, sr := range scored {
		if !seen[sr.Chunk.PaperId] {
			ids = append(ids, sr.Chunk.PaperId)
			seen[sr.Chunk.PaperId] = true
		}
	}
	papers, err := uow.PaperRepository().FindAll(ctx, specification.ByIDs{IDs: ids})
	if err != nil {
		return nil, err
	}
	titles := make(map[uuid.UUID]string, len(papers))
	for _, p := range papers {
		titles[p.Id] = p.Title
	}

	response := make([]*dto.SemanticSearchResult, 0, len(scored))
	for _, sr := range scored {
		response = append(response, &dto.SemanticSearchResult{
			ChunkId:    sr.Chunk.Id,
			PaperId:    sr.Chunk.PaperId,
			PaperTitle: titles[sr.Chunk.PaperId],
			ChunkIndex: sr.Chunk.ChunkIndex,
			Content:    sr.Chunk.Content,
			Similarity: sr.Similarity,
		})
	}
	return response, nil
}

func paperToResponse(paper *entity.Paper) *dto.PaperResponse {
	return &dto.PaperResponse{
		Id:            paper.Id,
		ChatSessionId: paper.ChatSessionId,
		Title:         paper.Title,
		SourceType:    paper.SourceType,
		Status:        paper.Status,
		FailureReason: paper.FailureReason,
		Attempt:       paper.Attempt,
		Position:      paper.Position,
		ChunkCount:    paper.ChunkCount,
		CreatedAt:     paper.CreatedAt,
		UpdatedAt:     paper.UpdatedAt,
	}
}

func recordFromPaper(paper *entity.Paper) ingest.Record {
	return ingest.Record{
		PaperID:       paper.Id,
		SessionID:     paper.ChatSessionId,
		Status:        paper.Status,
		Position:      paper.Position,
		Attempt:       paper.Attempt,
		ChunkCount:    paper.ChunkCount,
		FailureReason: paper.FailureReason,
	}
}
