package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-paperchat-be/internal/constant"
	"ai-paperchat-be/internal/repository/contract"
	"ai-paperchat-be/internal/repository/specification"
	"ai-paperchat-be/pkg/rag/index"
	"ai-paperchat-be/pkg/rag/ingest"
)

// rehydrate seeds the in-memory ingestion tracker and retrieval index from
// the durable paper rows. Papers caught mid-ingestion are marked failed:
// their queued jobs lived in process memory and did not survive the
// restart, so the owner has to ask for a retry.
func rehydrate(
	ctx context.Context,
	papers contract.PaperRepository,
	chunks contract.PaperChunkRepository,
	tracker *ingest.Tracker,
	searchIndex *index.Index,
	logger *log.Logger,
) error {
	rows, err := papers.FindAll(ctx)
	if err != nil {
		return err
	}

	ready := 0
	for _, p := range rows {
		status := p.Status
		reason := p.FailureReason
		if status == constant.PaperStatusPending || status == constant.PaperStatusEmbedding {
			status = constant.PaperStatusFailed
			reason = "ingestion interrupted by restart"
			p.Status = status
			p.FailureReason = reason
			now := time.Now()
			p.UpdatedAt = &now
			if err := papers.Update(ctx, p); err != nil {
				logger.Printf("[BOOT] Failed to mark interrupted paper %s: %v", p.Id, err)
			}
		}

		updatedAt := p.CreatedAt
		if p.UpdatedAt != nil {
			updatedAt = *p.UpdatedAt
		}
		tracker.Restore(ingest.Record{
			PaperID:       p.Id,
			SessionID:     p.ChatSessionId,
			Status:        status,
			Position:      p.Position,
			Attempt:       p.Attempt,
			ChunkCount:    p.ChunkCount,
			FailureReason: reason,
			UpdatedAt:     updatedAt,
		})

		if status != constant.PaperStatusReady {
			continue
		}
		chunkRows, err := chunks.FindAll(ctx,
			specification.ByPaperID{PaperID: p.Id},
			specification.OrderBy{Field: "chunk_index"},
		)
		if err != nil {
			logger.Printf("[BOOT] Failed to load chunks for paper %s: %v", p.Id, err)
			continue
		}
		batch := make([]index.Chunk, 0, len(chunkRows))
		for _, c := range chunkRows {
			batch = append(batch, index.Chunk{
				ID:         c.Id,
				ChunkIndex: c.ChunkIndex,
				Content:    c.Content,
				Embedding:  c.Embedding,
			})
		}
		if err := searchIndex.Add(p.ChatSessionId, p.Id, batch); err != nil {
			logger.Printf("[BOOT] Failed to index paper %s: %v", p.Id, err)
			continue
		}
		ready++
	}

	logger.Printf("[BOOT] Rehydrated %d papers (%d ready and searchable)", len(rows), ready)
	return nil
}
