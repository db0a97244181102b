package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"alfredoptarigan/interview-evaluator/internal/app"
	"alfredoptarigan/interview-evaluator/internal/config"
	"alfredoptarigan/interview-evaluator/internal/handlers"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Println("✅ Config loaded successfully")

	container, err := app.Init(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize application: %v", err)
	}

	// Initialize Handlers
	evaluateHandler := handlers.NewEvaluationHandler(
		container.Orchestrator,
		container.Worker,
		cfg.Evaluation.ForceOnRequest,
	)
	resultHandler := handlers.NewResultHandler(container.Store)
	questionHandler := handlers.NewQuestionHandler(container.Generator, container.Questions)
	log.Println("✅ Handlers initialized")

	// Synchronous evaluation holds the request for the whole pipeline.
	server := fiber.New(fiber.Config{
		AppName:      "AI Interview Evaluator API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	server.Use(recover.New())
	server.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	api := server.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})
	api.Get("/metrics", evaluateHandler.HandleMetrics)

	api.Post("/answers/:id/evaluate", evaluateHandler.HandleEvaluate)
	api.Get("/answers/:id/evaluation", resultHandler.HandleGetEvaluation)
	api.Post("/campaigns/:id/evaluate", evaluateHandler.HandleBulkEvaluate)
	api.Post("/questions/generate", questionHandler.HandleGenerate)
	api.Get("/campaigns/:id/questions", questionHandler.HandleListCampaignQuestions)

	server.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "AI Interview Evaluator API",
			"version": "1.0.0",
			"endpoints": []string{
				"GET /api/v1/health",
				"GET /api/v1/metrics",
				"POST /api/v1/answers/:id/evaluate",
				"GET /api/v1/answers/:id/evaluation",
				"POST /api/v1/campaigns/:id/evaluate",
				"POST /api/v1/questions/generate",
				"GET /api/v1/campaigns/:id/questions",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		if err := server.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := server.Listen(addr); err != nil {
		log.Printf("❌ Server stopped: %v", err)
	}

	container.Shutdown()
	log.Println("✅ Shutdown complete")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
