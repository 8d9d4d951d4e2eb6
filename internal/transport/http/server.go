package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "gopherai-knowledge/internal/app"
	"gopherai-knowledge/internal/bootstrap"
	"gopherai-knowledge/internal/cache"
	"gopherai-knowledge/internal/chunker"
	"gopherai-knowledge/internal/embedder"
	"gopherai-knowledge/internal/media"
	rabbitmqClient "gopherai-knowledge/internal/platform/rabbitmq"
	"gopherai-knowledge/internal/repository"
	"gopherai-knowledge/internal/transport/http/handler"
	"gopherai-knowledge/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestID(app.Log), gin.Recovery())
	router.MaxMultipartMemory = 8 << 20

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	cfg := app.Config

	var labels media.LabelDetector
	if cfg.Media.LabelModelPath != "" {
		labels = media.NewONNXLabeler(
			cfg.Media.LabelModelPath,
			cfg.Media.LabelNamesPath,
			cfg.Media.ONNXSharedLibPath,
			cfg.Media.LabelTopK,
		)
	}
	normalizer := media.NewNormalizer(
		media.NewDocumentExtractor(),
		media.NewImageExtractor(app.AI, cfg.LLM.VisionModel, labels),
		media.NewTranscriptExtractor(app.AI, cfg.LLM.TranscribeModel),
		media.NewTranscriptExtractor(app.AI, cfg.LLM.TranscribeModel),
		app.Log,
	)

	splitter := chunker.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, cfg.Ingest.BreakTolerance)
	emb := embedder.NewOrchestrator(app.AI, embedder.Config{
		Model:       cfg.LLM.EmbeddingModel,
		Dimension:   cfg.Pinecone.Dimension,
		RatePerSec:  cfg.Ingest.EmbedRatePerSec,
		Burst:       cfg.Ingest.EmbedBurst,
		Concurrency: cfg.Ingest.EmbedConcurrency,
	}, app.Log)

	publisher := rabbitmqClient.NewIngestEventPublisher(app.MQConn, cfg.Ingest.AuditQueue)
	recordRepo := repository.NewIngestRecordRepository(app.MySQL)

	ingestService := appsvc.NewIngestService(
		normalizer, splitter, emb, app.Store, cfg.Pinecone.IndexName, publisher, app.Log,
	)

	queryCache := cache.NewQueryVectorCache(app.Redis, time.Duration(cfg.Retrieval.QueryCacheTTLSeconds)*time.Second)
	retriever := appsvc.NewRetriever(
		emb, app.Store, queryCache, cfg.Pinecone.IndexName,
		cfg.Retrieval.TopK, cfg.Retrieval.MaxContextChars, app.Log,
	)
	chatService := appsvc.NewChatService(retriever, app.AI, cfg.LLM.ChatModel, cfg.LLM.MaxHistoryMessage, app.Log)

	ingestHandler := handler.NewIngestHandler(ingestService, recordRepo)
	chatHandler := handler.NewChatHandler(chatService)

	v1 := router.Group("/api/v1")
	ingestGroup := v1.Group("/ingest")
	ingestGroup.POST("/upload", ingestHandler.Upload)
	ingestGroup.GET("/records", ingestHandler.Records)

	chatGroup := v1.Group("/chat")
	chatGroup.POST("/ask", chatHandler.Ask)
	chatGroup.POST("/stream", chatHandler.Stream)

	return router
}
