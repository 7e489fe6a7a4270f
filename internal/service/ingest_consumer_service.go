package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"ai-paperchat-be/internal/constant"
	"ai-paperchat-be/internal/dto"
	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/pkg/mailer"
	"ai-paperchat-be/internal/repository/specification"
	"ai-paperchat-be/internal/repository/unitofwork"
	"ai-paperchat-be/pkg/embedding"
	"ai-paperchat-be/pkg/events"
	pktNats "ai-paperchat-be/pkg/nats"
	"ai-paperchat-be/pkg/rag/index"
	"ai-paperchat-be/pkg/rag/ingest"
	"ai-paperchat-be/pkg/textsplit"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// IngestSettings carries the tunables of the embedding pipeline.
type IngestSettings struct {
	ChunkSize    int
	ChunkOverlap int
	EmbedTimeout time.Duration
	// AutoRetry schedules a fresh attempt after a failure, up to MaxAttempts.
	// Off by default; failed papers then wait for an explicit retry request.
	AutoRetry   bool
	MaxAttempts int
	// AlertEmail receives a mail per failed attempt. Empty disables alerts.
	AlertEmail string
}

type IIngestConsumerService interface {
	Consume(ctx context.Context) error
}

type ingestConsumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	tracker           *ingest.Tracker
	searchIndex       *index.Index
	eventPublisher    *pktNats.Publisher
	emailService      mailer.IEmailService
	publisherService  IPublisherService
	settings          IngestSettings
}

func NewIngestConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	tracker *ingest.Tracker,
	searchIndex *index.Index,
	eventPublisher *pktNats.Publisher,
	emailService mailer.IEmailService,
	publisherService IPublisherService,
	settings IngestSettings,
) IIngestConsumerService {
	if settings.ChunkSize <= 0 {
		settings.ChunkSize = 1500
	}
	if settings.ChunkOverlap < 0 {
		settings.ChunkOverlap = 0
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = 3
	}
	return &ingestConsumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		tracker:           tracker,
		searchIndex:       searchIndex,
		eventPublisher:    eventPublisher,
		emailService:      emailService,
		publisherService:  publisherService,
		settings:          settings,
	}
}

func (cs *ingestConsumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *ingestConsumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishIngestPaperMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal ingest message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	if !cs.claim(payload.PaperId) {
		msg.Ack()
		return
	}

	log.Printf("[INFO] Processing paper embedding for PaperId: %s", payload.PaperId)

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	paper, err := uow.PaperRepository().FindOne(ctx, specification.ByID{ID: payload.PaperId})
	if err != nil {
		log.Printf("[ERROR] Failed to get paper %s: %v", payload.PaperId, err)
		msg.Nack() // Nack for retriable errors
		return
	}
	if paper == nil {
		log.Printf("[ERROR] Paper not found: %s", payload.PaperId)
		msg.Ack() // Paper deleted? Ack.
		return
	}

	chunks := textsplit.Split(paper.Content, cs.settings.ChunkSize, cs.settings.ChunkOverlap)
	log.Printf("[INFO] Paper %s split into %d chunks", paper.Id, len(chunks))
	if len(chunks) == 0 {
		cs.failPaper(ctx, uow, paper, "paper content produced no text chunks")
		msg.Ack()
		return
	}

	newChunks := make([]*entity.PaperChunk, 0, len(chunks))
	indexChunks := make([]index.Chunk, 0, len(chunks))

	for i, chunk := range chunks {
		res, err := cs.embed(ctx, chunk)
		if err != nil {
			log.Printf("[ERROR] Failed to embed chunk %d of paper %s: %v", i, paper.Id, err)
			cs.failPaper(ctx, uow, paper, "embedding provider failed: "+err.Error())
			msg.Ack() // terminal for this attempt, a retry starts a new one
			return
		}

		id := uuid.New()
		newChunks = append(newChunks, &entity.PaperChunk{
			Id:         id,
			PaperId:    paper.Id,
			ChunkIndex: i,
			Content:    chunk,
			Embedding:  res.Embedding.Values,
			CreatedAt:  time.Now(),
		})
		indexChunks = append(indexChunks, index.Chunk{
			ID:         id,
			ChunkIndex: i,
			Content:    chunk,
			Embedding:  res.Embedding.Values,
		})
	}

	if err := uow.Begin(ctx); err != nil {
		log.Printf("[ERROR] Failed to begin transaction: %v", err)
		msg.Nack()
		return
	}
	defer uow.Rollback()

	// Chunks of prior attempts are superseded wholesale.
	if err := uow.PaperChunkRepository().DeleteByPaperId(ctx, paper.Id); err != nil {
		log.Printf("[ERROR] Failed to delete old chunks: %v", err)
		msg.Nack()
		return
	}

	if err := uow.PaperChunkRepository().CreateBulk(ctx, newChunks); err != nil {
		log.Printf("[ERROR] Failed to create bulk chunks: %v", err)
		msg.Nack()
		return
	}

	now := time.Now()
	paper.Status = constant.PaperStatusReady
	paper.FailureReason = ""
	paper.ChunkCount = len(newChunks)
	paper.UpdatedAt = &now
	if err := uow.PaperRepository().Update(ctx, paper); err != nil {
		log.Printf("[ERROR] Failed to mark paper ready: %v", err)
		msg.Nack()
		return
	}

	if err := uow.Commit(); err != nil {
		log.Printf("[ERROR] Failed to commit transaction: %v", err)
		msg.Nack()
		return
	}

	// Chunks are durable. Make them searchable, then flip readiness so the
	// whole paper becomes visible to queries at once.
	if err := cs.searchIndex.Add(paper.ChatSessionId, paper.Id, indexChunks); err != nil {
		log.Printf("[ERROR] Failed to index paper %s: %v", paper.Id, err)
	}
	if err := cs.tracker.MarkReady(paper.Id, len(newChunks)); err != nil {
		log.Printf("[ERROR] Failed to mark paper %s ready: %v", paper.Id, err)
	}

	if cs.eventPublisher != nil {
		evt := events.NewPaperReadyEvent(paper.Id, paper.ChatSessionId, paper.UserId, paper.Title, len(newChunks), paper.Attempt)
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			log.Printf("[WARN] Failed to publish paper_ready event: %v", err)
		}
	}

	log.Printf("[SUCCESS] Paper processed: %d chunks for PaperId: %s (attempt %d)", len(newChunks), paper.Id, paper.Attempt)
	msg.Ack()
}

// claim moves the tracker record to embedding. A redelivered job finds the
// record already claimed and resumes; terminal records mean the job is stale.
func (cs *ingestConsumerService) claim(paperID uuid.UUID) bool {
	if err := cs.tracker.MarkEmbedding(paperID); err == nil {
		return true
	}
	rec, found := cs.tracker.Get(paperID)
	if !found {
		log.Printf("[WARN] Ingest job for untracked paper %s, skipping", paperID)
		return false
	}
	if rec.Status == constant.PaperStatusEmbedding {
		return true
	}
	log.Printf("[INFO] Ingest job for paper %s skipped, status already %s", paperID, rec.Status)
	return false
}

func (cs *ingestConsumerService) embed(ctx context.Context, chunk string) (*embedding.EmbeddingResponse, error) {
	if cs.settings.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cs.settings.EmbedTimeout)
		defer cancel()
	}
	return cs.embeddingProvider.Generate(ctx, chunk, constant.EmbeddingTaskDocument)
}

// failPaper records a terminally failed attempt: tracker first so queries
// stop seeing the paper as in-flight, then the durable row, then fanout.
func (cs *ingestConsumerService) failPaper(ctx context.Context, uow unitofwork.UnitOfWork, paper *entity.Paper, reason string) {
	if err := cs.tracker.MarkFailed(paper.Id, reason); err != nil {
		log.Printf("[ERROR] Failed to mark paper %s failed in tracker: %v", paper.Id, err)
	}

	now := time.Now()
	paper.Status = constant.PaperStatusFailed
	paper.FailureReason = reason
	paper.UpdatedAt = &now
	if err := uow.PaperRepository().Update(ctx, paper); err != nil {
		log.Printf("[ERROR] Failed to persist failed status for paper %s: %v", paper.Id, err)
	}

	if cs.eventPublisher != nil {
		evt := events.NewPaperFailedEvent(paper.Id, paper.ChatSessionId, paper.UserId, paper.Title, reason, paper.Attempt)
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			log.Printf("[WARN] Failed to publish paper_failed event: %v", err)
		}
	}

	if cs.emailService != nil && cs.settings.AlertEmail != "" {
		if err := cs.emailService.SendIngestFailureAlert(cs.settings.AlertEmail, paper.Title, reason, paper.Attempt); err != nil {
			log.Printf("[WARN] Failed to send ingest failure alert: %v", err)
		}
	}

	if cs.settings.AutoRetry && paper.Attempt < cs.settings.MaxAttempts {
		cs.scheduleRetry(ctx, uow, paper)
	}
}

// scheduleRetry opens attempt N+1 and republishes the job. Stale chunks of
// the superseded attempt leave the index immediately.
func (cs *ingestConsumerService) scheduleRetry(ctx context.Context, uow unitofwork.UnitOfWork, paper *entity.Paper) {
	attempt, err := cs.tracker.NewAttempt(paper.Id)
	if err != nil {
		log.Printf("[ERROR] Failed to open new attempt for paper %s: %v", paper.Id, err)
		return
	}

	cs.searchIndex.Remove(paper.Id)

	now := time.Now()
	paper.Status = constant.PaperStatusPending
	paper.FailureReason = ""
	paper.Attempt = attempt
	paper.UpdatedAt = &now
	if err := uow.PaperRepository().Update(ctx, paper); err != nil {
		log.Printf("[ERROR] Failed to persist retry attempt for paper %s: %v", paper.Id, err)
	}

	job, _ := json.Marshal(dto.PublishIngestPaperMessage{PaperId: paper.Id})
	if err := cs.publisherService.Publish(ctx, job); err != nil {
		log.Printf("[ERROR] Failed to republish ingest job for paper %s: %v", paper.Id, err)
		return
	}
	log.Printf("[INFO] Scheduled retry attempt %d for paper %s", attempt, paper.Id)
}
