package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/sevanet-labs/sevabot-backend/internal/clients/gcp"
	"github.com/sevanet-labs/sevabot-backend/internal/clients/openai"
	"github.com/sevanet-labs/sevabot-backend/internal/clients/pinecone"
	"github.com/sevanet-labs/sevabot-backend/internal/config"
	"github.com/sevanet-labs/sevabot-backend/internal/db"
	"github.com/sevanet-labs/sevabot-backend/internal/handlers"
	"github.com/sevanet-labs/sevabot-backend/internal/logger"
	"github.com/sevanet-labs/sevabot-backend/internal/rag"
	"github.com/sevanet-labs/sevabot-backend/internal/repos"
	"github.com/sevanet-labs/sevabot-backend/internal/server"
	"github.com/sevanet-labs/sevabot-backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	log.Info("Loading configuration...")
	cfg := config.Load(log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	documentRepo := repos.NewDocumentRepo(thePG, log)
	conversationRepo := repos.NewConversationRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)

	// External clients
	log.Info("Setting up clients...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	pineconeClient, err := pinecone.New(log, pinecone.Config{
		APIKey:  os.Getenv("PINECONE_API_KEY"),
		Timeout: 30 * time.Second,
	})
	if err != nil {
		log.Error("Could not init Pinecone client", "error", err)
		os.Exit(1)
	}
	vectorStore, err := pinecone.NewVectorStore(log, pineconeClient)
	if err != nil {
		log.Error("Could not init vector store", "error", err)
		os.Exit(1)
	}
	// Archival degrades to disabled when blob storage is not configured.
	bucketService, err := gcp.NewBucketService(log)
	if err != nil {
		log.Warn("Could not init BucketService, archival disabled", "error", err)
		bucketService = nil
	}

	// RAG pipeline
	log.Info("Setting up pipeline...")
	embedder, err := rag.NewEmbeddingGateway(log, openaiClient)
	if err != nil {
		log.Error("Could not init embedding gateway", "error", err)
		os.Exit(1)
	}
	scopeManager, err := rag.NewScopeManager(log, vectorStore)
	if err != nil {
		log.Error("Could not init scope manager", "error", err)
		os.Exit(1)
	}
	ingestor, err := rag.NewIngestor(log, &cfg, documentRepo, embedder, scopeManager)
	if err != nil {
		log.Error("Could not init ingestor", "error", err)
		os.Exit(1)
	}
	retriever, err := rag.NewRetriever(log, &cfg, embedder, scopeManager)
	if err != nil {
		log.Error("Could not init retriever", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up services...")
	libraryService, err := services.NewLibraryService(log, documentRepo, ingestor, scopeManager)
	if err != nil {
		log.Error("Could not init LibraryService", "error", err)
		os.Exit(1)
	}
	chatService, err := services.NewChatService(log, &cfg, conversationRepo, messageRepo, retriever, openaiClient)
	if err != nil {
		log.Error("Could not init ChatService", "error", err)
		os.Exit(1)
	}
	archiveService, err := services.NewArchiveService(log, &cfg, conversationRepo, messageRepo, bucketService)
	if err != nil {
		log.Error("Could not init ArchiveService", "error", err)
		os.Exit(1)
	}

	// HTTP
	log.Info("Setting up router...")
	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(libraryService),
		ChatHandler:     handlers.NewChatHandler(chatService),
		ArchiveHandler:  handlers.NewArchiveHandler(archiveService),
	})

	log.Info("Starting server", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
