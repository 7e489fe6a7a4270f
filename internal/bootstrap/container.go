package bootstrap

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"ai-paperchat-be/internal/config"
	"ai-paperchat-be/internal/controller"
	"ai-paperchat-be/internal/handler"
	"ai-paperchat-be/internal/pkg/logger"
	"ai-paperchat-be/internal/pkg/mailer"
	"ai-paperchat-be/internal/repository/implementation"
	"ai-paperchat-be/internal/repository/memory"
	"ai-paperchat-be/internal/repository/unitofwork"
	"ai-paperchat-be/internal/service"
	"ai-paperchat-be/internal/websocket"
	"ai-paperchat-be/pkg/embedding"
	"ai-paperchat-be/pkg/embedding/jina"
	"ai-paperchat-be/pkg/llm/factory"
	"ai-paperchat-be/pkg/rag/history"
	"ai-paperchat-be/pkg/rag/index"
	"ai-paperchat-be/pkg/rag/ingest"
	"ai-paperchat-be/pkg/rag/respond"
	"ai-paperchat-be/pkg/rag/state"
	"ai-paperchat-be/pkg/transcript"

	pktNats "ai-paperchat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController  controller.IChatController
	RAGController   controller.IRAGController
	PaperController controller.IPaperController

	// Background Services (Exposed for main.go to run)
	IngestConsumer service.IIngestConsumerService

	// WebSockets & push
	PushHandler  *handler.PushHandler
	WebSocketHub *websocket.Hub

	// Transcripts is exposed so the health endpoint can report fallback mode.
	Transcripts *transcript.Store

	// Logger is the main application log, shared with the HTTP error handler.
	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	ragLogger := initPipelineLogger("logs/rag_pipeline.log", "[RAG] ")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)

	// 2. Event Bus (in-process job queue for ingestion)
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else if cfg.Ai.EmbeddingProvider == "jina" {
		embeddingProvider = jina.NewJinaProvider(cfg.Keys.JinaAi)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmBaseURL := cfg.Ai.LLMBaseURL
	if llmBaseURL == "" {
		llmBaseURL = cfg.Ai.OllamaBaseURL
	}
	llmKey := cfg.Keys.HuggingFace
	if cfg.Ai.LLMProvider == "gemini" {
		llmKey = cfg.Keys.GoogleGemini
	}
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		llmBaseURL,
		llmKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 3.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := initPipelineLogger("logs/push.log", "[PUSH] ")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Domain Components
	transcripts := transcript.NewStore(
		implementation.NewChatMessageRepository(db),
		memory.NewTranscriptLog(),
		ragLogger,
	)
	historyLoader := history.NewLoader(transcripts, rdb, cfg.Rag.HistoryWindow, ragLogger)
	stateManager := state.NewManager(memory.NewRAGStateRepository(), ragLogger)
	tracker := ingest.NewTracker(ragLogger)
	searchIndex := index.NewIndex(tracker, embeddingProvider, nil, ragLogger)
	responder := respond.NewResponder(searchIndex, llmProvider, cfg.Rag.TopK, cfg.Ai.GenerateTimeout, ragLogger)

	// Warm start: papers and their ready chunks come back from postgres so
	// status counts and retrieval survive restarts.
	if err := rehydrate(
		context.Background(),
		implementation.NewPaperRepository(db),
		implementation.NewPaperChunkRepository(db),
		tracker,
		searchIndex,
		ragLogger,
	); err != nil {
		log.Printf("[WARN] Paper rehydration failed, starting cold: %v", err)
	}

	// 5. Services
	publisherService := service.NewPublisherService(cfg.Keys.IngestTopic, pubSub)
	ingestConsumer := service.NewIngestConsumerService(
		pubSub,
		cfg.Keys.IngestTopic,
		uowFactory,
		embeddingProvider,
		tracker,
		searchIndex,
		natsPub,
		emailService,
		publisherService,
		service.IngestSettings{
			ChunkSize:    cfg.Rag.ChunkSize,
			ChunkOverlap: cfg.Rag.ChunkOverlap,
			EmbedTimeout: cfg.Ai.EmbedTimeout,
			AutoRetry:    cfg.Rag.IngestAutoRetry,
			MaxAttempts:  cfg.Rag.IngestMaxAttempts,
			AlertEmail:   cfg.SMTP.AlertEmail,
		},
	)

	chatService := service.NewChatService(
		uowFactory,
		transcripts,
		historyLoader,
		responder,
		stateManager,
		cfg.Rag.DefaultRoute,
		ragLogger,
	)
	ragService := service.NewRAGService(uowFactory, stateManager, tracker)
	paperService := service.NewPaperService(
		uowFactory,
		publisherService,
		embeddingProvider,
		tracker,
		searchIndex,
		cfg.Rag.ScoreThreshold,
		cfg.Ai.EmbedTimeout,
	)

	// 5.5 Push Notifier (NATS -> websocket). Delivery logs are chatty, so
	// they go to their own file instead of the main log.
	pushLogger := logger.NewIsolatedLogger("logs/push_delivery.log")
	notifier := service.NewNotifierService(natsSub, wsHub, pushLogger)
	if natsSub != nil {
		go notifier.Start()
	}

	pushHandler := handler.NewPushHandler(natsPub, wsHub, pushLogger)

	// 6. Controllers
	return &Container{
		ChatController:  controller.NewChatController(chatService),
		RAGController:   controller.NewRAGController(ragService),
		PaperController: controller.NewPaperController(paperService),

		IngestConsumer: ingestConsumer,

		PushHandler:  pushHandler,
		WebSocketHub: wsHub,

		Transcripts: transcripts,
		Logger:      sysLogger,
	}
}

// initPipelineLogger opens an append-only file logger, falling back to
// stdout with a prefix when the file cannot be opened.
func initPipelineLogger(logPath, prefix string) *log.Logger {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, prefix, log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}
