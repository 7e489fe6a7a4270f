package integration

import (
	"context"
	"log"
	"os"
	"testing"

	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/repository/unitofwork"
	"ai-paperchat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.UserRepository())
	assert.NotNil(t, uow.PaperRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)
	t.Log("Successfully connected to DB and initialized UnitOfWork Factory")

	// Verify Data Access (implies columns exist)
	t.Run("Check User Repository", func(t *testing.T) {
		count, err := uow.UserRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("User count: %d", count)
	})

	t.Run("Check Chat Message Repository", func(t *testing.T) {
		count, err := uow.ChatMessageRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("ChatMessage count: %d", count)
	})

	t.Run("Transactional Paper Attach With Vector Search", func(t *testing.T) {
		ctx := context.Background()

		userId := uuid.New()
		user := &entity.User{
			Id:       userId,
			Email:    "test-integration-" + uuid.New().String() + "@example.com",
			FullName: "Integration Test User",
			Role:     "user",
			Status:   "active",
		}
		err := uow.UserRepository().Create(ctx, user)
		assert.NoError(t, err)

		sessionId := uuid.New()
		session := &entity.ChatSession{
			Id:     sessionId,
			UserId: userId,
			Title:  "Integration Session",
		}
		err = uow.ChatSessionRepository().Create(ctx, session)
		assert.NoError(t, err)

		// Paper, chunks, and the ready flip all land in one transaction.
		err = uow.Begin(ctx)
		assert.NoError(t, err)
		defer uow.Rollback()

		paperId := uuid.New()
		paper := &entity.Paper{
			Id:            paperId,
			ChatSessionId: sessionId,
			UserId:        userId,
			Title:         "Integration Paper",
			SourceType:    "text",
			Content:       "attention weighs every token against every other token",
			Status:        "ready",
			Attempt:       1,
			Position:      1,
			ChunkCount:    1,
		}
		err = uow.PaperRepository().Create(ctx, paper)
		assert.NoError(t, err)

		// The embedding column is vector(768); any unit vector will do.
		emb := make([]float32, 768)
		emb[0] = 1

		chunks := []*entity.PaperChunk{
			{
				Id:         uuid.New(),
				PaperId:    paperId,
				ChunkIndex: 0,
				Content:    "attention weighs every token against every other token",
				Embedding:  emb,
			},
		}
		err = uow.PaperChunkRepository().CreateBulk(ctx, chunks)
		assert.NoError(t, err)

		err = uow.Commit()
		assert.NoError(t, err)

		pos, err := uow.PaperRepository().MaxPosition(ctx, sessionId)
		assert.NoError(t, err)
		assert.Equal(t, 1, pos)

		// Same vector back in: cosine similarity should be ~1 and well
		// above any sane threshold.
		scored, err := uow.PaperChunkRepository().SearchSimilarWithScore(ctx, emb, 5, sessionId, 0.5)
		assert.NoError(t, err)
		if assert.Len(t, scored, 1) {
			assert.Equal(t, paperId, scored[0].Chunk.PaperId)
			assert.InDelta(t, 1.0, scored[0].Similarity, 0.01)
		}

		t.Log("Successfully attached Paper with chunks and ran pgvector search")
	})

	t.Run("Session Scoping Excludes Other Sessions", func(t *testing.T) {
		ctx := context.Background()

		emb := make([]float32, 768)
		emb[0] = 1

		scored, err := uow.PaperChunkRepository().SearchSimilarWithScore(ctx, emb, 5, uuid.New(), 0.5)
		assert.NoError(t, err)
		assert.Empty(t, scored)
	})
}
