package app

import (
	"database/sql"
	"fmt"
	"log"

	"homebase/internal/assistant"
	"homebase/internal/chunker"
	"homebase/internal/config"
	"homebase/internal/events"
	"homebase/internal/extract"
	"homebase/internal/handlers"
	"homebase/internal/llm"
	"homebase/internal/migrate"
	"homebase/internal/pdf"
	"homebase/internal/repositories"
	"homebase/internal/routes"
	"homebase/internal/services"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
)

func Run() {
	cfg := config.LoadConfig()

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DB connection failed: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("DB close failed: %v", err)
		}
	}()

	if err := migrate.Migrate(db); err != nil {
		log.Fatal("Migration failed: ", err)
	}

	// === Repos ===
	writer := events.Writer{}
	partyRepo := repositories.NewPartyRepository(db)
	documentRepo := repositories.NewDocumentRepository(db)
	taskRepo := repositories.NewTaskRepository(db, writer)
	projectRepo := repositories.NewProjectRepository(db)
	labelRepo := repositories.NewLabelRepository(db, writer)
	commentRepo := repositories.NewCommentRepository(db, writer)

	// === LLM ===
	llmClient := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.ChatModel, cfg.LLM.EmbeddingModel)

	// === Services ===
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
		cfg.Email.DryRun,
	)

	documentService := services.NewDocumentService(
		documentRepo,
		extract.NewService(cfg.Extractor.URL),
		llmClient,
		chunker.New(cfg.Chunker.TargetSize, cfg.Chunker.Overlap),
		cfg.Files.RootDir,
	)
	documentService.Party = partyRepo
	documentService.Notify = emailService
	retrievalService := services.NewRetrievalService(documentRepo, llmClient)
	taskService := services.NewTaskService(taskRepo, projectRepo, labelRepo, commentRepo, partyRepo, emailService)
	projectService := services.NewProjectService(projectRepo)
	contextService := services.NewContextService(partyRepo, documentRepo, taskRepo, projectRepo, commentRepo)
	reportService := services.NewReportService(taskRepo, projectRepo, partyRepo, pdf.NewReportGenerator())

	engine := assistant.NewEngine(llmClient, partyRepo, taskService, projectService, retrievalService, contextService)

	// === Handlers ===
	partyHandler := handlers.NewPartyHandler(partyRepo, contextService)
	documentHandler := handlers.NewDocumentHandler(documentService, retrievalService)
	taskHandler := handlers.NewTaskHandler(taskService)
	projectHandler := handlers.NewProjectHandler(projectService)
	assistantHandler := handlers.NewAssistantHandler(engine)
	reportHandler := handlers.NewReportHandler(reportService)

	// === Gin ===
	router := gin.Default()
	router.Use(corsMiddleware())

	routes.SetupRoutes(
		router,
		[]byte(cfg.Auth.JWTSecret),
		partyRepo,
		partyHandler,
		documentHandler,
		taskHandler,
		projectHandler,
		assistantHandler,
		reportHandler,
	)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Server listening on %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("Server failed: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
