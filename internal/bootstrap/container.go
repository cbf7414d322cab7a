package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-docqa-be/internal/config"
	"ai-docqa-be/internal/controller"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/internal/service"
	"ai-docqa-be/internal/websocket"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/llm/factory"
	"ai-docqa-be/pkg/rag"
	"ai-docqa-be/pkg/store"
	"ai-docqa-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ingestTopic carries chunked documents from the ingest endpoint to the
// embedding consumer.
const ingestTopic = "document.embed_chunks"

type Container struct {
	// Controllers
	ChatController     controller.IChatController
	DocumentController controller.IDocumentController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	ChatService  service.IChatService
	WebSocketHub *websocket.Hub

	Logger logger.ILogger
}

// NewContainer wires the whole object graph. db may be nil: the vector
// gateway then falls back to the in-process collection, which keeps local
// development working without Postgres.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Redis + session store with in-process fallback
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

	kvStore := store.NewFailoverStore(
		store.NewRedisStore(rdb),
		store.NewMemoryStore(cfg.Rag.SessionTTL),
		sysLogger,
	)
	sessionStore := store.NewSessionStore(kvStore, cfg.Rag.SessionTTL, cfg.Rag.MaxSessionMessages)

	// 4. Vector gateway: pgvector when a DB is wired, otherwise in-process.
	// The choice is made once here and never revisited mid-run.
	var gateway vectorstore.Gateway
	if db != nil {
		pgGateway, err := vectorstore.NewPgvectorGateway(db)
		if err != nil {
			log.Fatalf("[FATAL] Failed to initialize pgvector gateway: %v", err)
		}
		gateway = pgGateway
		log.Printf("[INFO] Using Vector Gateway: PGVECTOR")
	} else {
		gateway = vectorstore.NewMemoryGateway()
		log.Printf("[INFO] Using Vector Gateway: IN-MEMORY")
	}

	// 5. Embedding Provider based on Config
	var embeddingProvider embedding.Provider
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	case "openai":
		embeddingProvider = embedding.NewOpenAIProvider(cfg.Keys.OpenAI, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OPENAI (%s)", cfg.Ai.EmbeddingModel)
	default:
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}
	embeddingClient := embedding.NewClient(embeddingProvider, embedding.ClientConfig{
		BatchDelay: cfg.Rag.EmbedBatchDelay,
		Workers:    cfg.Rag.EmbedWorkers,
	})

	// 6. LLM Provider based on Config
	apiKey := cfg.Keys.OpenAI
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		apiKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 7. Query pipeline
	pipeline := rag.NewPipeline(embeddingClient, gateway, llmProvider, rag.Config{
		TopK:                cfg.Rag.TopK,
		SimilarityThreshold: cfg.Rag.SimilarityThreshold,
		MaxContextDocs:      cfg.Rag.MaxContextDocs,
		SearchTimeout:       cfg.Rag.SearchTimeout,
		GenerateTimeout:     cfg.Rag.GenerateTimeout,
		StreamPacing:        30 * time.Millisecond,
	}, sysLogger)

	// 8. Services
	publisherService := service.NewPublisherService(ingestTopic, pubSub)
	chatService := service.NewChatService(pipeline, sessionStore, kvStore, sysLogger)
	documentService := service.NewDocumentService(
		gateway,
		embeddingClient,
		publisherService,
		cfg.Rag.ChunkSize,
		cfg.Rag.ChunkOverlap,
		sysLogger,
	)
	consumerService := service.NewConsumerService(
		pubSub,
		ingestTopic,
		embeddingClient,
		gateway,
		cfg.Rag.EmbedBatchSize,
		sysLogger,
	)

	// 9. WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	return &Container{
		ChatController:     controller.NewChatController(chatService, sysLogger),
		DocumentController: controller.NewDocumentController(documentService),
		ConsumerService:    consumerService,
		ChatService:        chatService,
		WebSocketHub:       wsHub,
		Logger:             sysLogger,
	}
}
