package app

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"alfredoptarigan/interview-evaluator/internal/config"
	"alfredoptarigan/interview-evaluator/internal/repositories"
	"alfredoptarigan/interview-evaluator/internal/services"
)

// Container holds the process-wide collaborators built once at start-up
// and handed to the HTTP layer.
type Container struct {
	Config       *config.Config
	DB           *gorm.DB
	Store        repositories.EvaluationStore
	Questions    repositories.QuestionRepository
	Orchestrator services.EvaluationOrchestrator
	Generator    services.QuestionGenerator
	Queue        services.JobQueue
	Worker       services.Worker

	closers []func() error
	cancel  context.CancelFunc
}

// Init connects the database, builds the pipeline and starts the worker.
// Optional backends (Qdrant, RabbitMQ, transcription, secondary classifier)
// are skipped with a warning when unconfigured.
func Init(cfg *config.Config) (*Container, error) {
	db, err := config.InitDatabase(cfg)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:    cfg,
		DB:        db,
		Store:     repositories.NewEvaluationRepository(db),
		Questions: repositories.NewQuestionRepository(db),
	}
	log.Println("✅ Repositories initialized successfully")

	scratch := services.NewScratchStorage(cfg.Media.ScratchDir)
	if err := scratch.EnsureDir(); err != nil {
		return nil, err
	}

	settings := services.GenerationSettings{
		Model:       cfg.PrimaryLLM.Model,
		Temperature: cfg.Analyzer.Temperature,
		TopP:        cfg.Analyzer.TopP,
		TopK:        cfg.Analyzer.TopK,
		MaxTokens:   cfg.Analyzer.MaxTokens,
	}

	llm, embedder, err := c.initPrimaryLLM(cfg, settings)
	if err != nil {
		return nil, err
	}

	languages := services.NewLanguageNormalizer()
	transcriber := services.NewWhisperTranscriber(
		cfg.Transcriber.OpenAIAPIKey,
		cfg.Transcriber.BaseURL,
		cfg.Transcriber.ModelSize,
		languages,
	)
	if cfg.Transcriber.OpenAIAPIKey == "" && cfg.Transcriber.BaseURL == "" {
		log.Println("⚠️  No transcription backend configured, answers will be analyzed from context only")
	} else {
		// Detector tables take a while to build; do it before the first request.
		go languages.Warmup()
	}

	var extractor services.AudioExtractor
	if cfg.Media.ExtractionEnable {
		extractor = services.NewAudioExtractor(cfg.Media.FFmpegPath, scratch)
	}

	analyzer := services.NewAIAnalyzer(
		services.NewPrimaryTier(llm),
		services.NewSecondaryTier(services.NewEmbeddingClassifier(
			cfg.Transcriber.OpenAIAPIKey, "", cfg.Analyzer.SecondaryModel)),
		services.NewContextualTier(cfg.Analyzer.ContextualFallback),
	)
	if !analyzer.Configured() {
		log.Println("⚠️  Primary LLM is not configured, evaluations will fail with configuration_missing")
	}

	prompts := services.NewPromptBuilder()

	metrics := services.NewMetrics()
	c.closers = append(c.closers, func() error {
		return metrics.Shutdown(context.Background())
	})

	c.Orchestrator = services.NewEvaluationOrchestrator(services.OrchestratorDeps{
		Store:           c.Store,
		Fetcher:         services.NewMediaFetcher(scratch, cfg.Media.FetchTimeout, cfg.Media.MaxBytes),
		Extractor:       extractor,
		Transcriber:     transcriber,
		Analyzer:        analyzer,
		Rubrics:         c.initRubrics(cfg, embedder),
		Prompts:         prompts,
		Metrics:         metrics,
		LanguageHint:    cfg.Transcriber.LanguageHint,
		BulkConcurrency: cfg.Evaluation.BulkConcurrency,
	})
	c.Generator = services.NewQuestionGenerator(llm, prompts, nil)
	log.Println("✅ Evaluation pipeline initialized")

	c.Queue, err = initQueue(cfg)
	if err != nil {
		return nil, err
	}

	c.Worker = services.NewWorker(c.Store, c.Orchestrator, c.Queue,
		cfg.Worker.Concurrency, cfg.Worker.AutoEvaluateTick)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	if err := c.Worker.Start(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	return c, nil
}

// initPrimaryLLM returns a nil client when the backend is not configured so
// the analyzer reports configuration_missing per request instead of the
// process refusing to start.
func (c *Container) initPrimaryLLM(cfg *config.Config, settings services.GenerationSettings) (services.LLMClient, services.Embedder, error) {
	if !cfg.PrimaryLLMConfigured() {
		return nil, nil, nil
	}

	if cfg.PrimaryLLM.Backend == config.BackendVertex {
		vertex, err := services.NewVertexService(cfg.PrimaryLLM.Project, cfg.PrimaryLLM.Location, settings)
		if err != nil {
			return nil, nil, err
		}
		c.closers = append(c.closers, vertex.Close)
		log.Println("✅ Vertex AI initialized successfully")

		// Embeddings for rubric retrieval still need a Gemini API key.
		if cfg.PrimaryLLM.APIKey == "" {
			return vertex, nil, nil
		}
		gemini, err := services.NewGeminiService(cfg.PrimaryLLM.APIKey, settings)
		if err != nil {
			return nil, nil, err
		}
		return vertex, gemini, nil
	}

	gemini, err := services.NewGeminiService(cfg.PrimaryLLM.APIKey, settings)
	if err != nil {
		return nil, nil, err
	}
	log.Println("✅ Gemini AI initialized successfully")
	return gemini, gemini, nil
}

func (c *Container) initRubrics(cfg *config.Config, embedder services.Embedder) services.RubricIndex {
	if cfg.Qdrant.URL == "" || embedder == nil {
		return nil
	}

	qdrant, err := services.NewQdrantService(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection)
	if err != nil {
		log.Printf("⚠️  Rubric retrieval disabled: %v\n", err)
		return nil
	}
	if err := qdrant.InitCollection(context.Background()); err != nil {
		log.Printf("⚠️  Rubric retrieval disabled: %v\n", err)
		return nil
	}

	log.Println("✅ Qdrant initialized successfully")
	return services.NewRubricIndex(embedder, qdrant)
}

func initQueue(cfg *config.Config) (services.JobQueue, error) {
	if cfg.Worker.RabbitMQURL == "" {
		return services.NewChannelQueue(100), nil
	}
	return services.NewRabbitMQQueue(cfg.Worker.RabbitMQURL, cfg.Worker.RabbitMQQueue, cfg.Worker.Concurrency)
}

// Shutdown stops the worker and releases clients in reverse order.
func (c *Container) Shutdown() {
	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			log.Printf("⚠️  Failed to close job queue: %v\n", err)
		}
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.Worker != nil {
		c.Worker.Stop()
	}

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Printf("⚠️  Shutdown: %v\n", err)
		}
	}

	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
