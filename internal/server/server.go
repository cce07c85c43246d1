package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/promoloop/reelpipe/internal/config"
	"github.com/promoloop/reelpipe/internal/service"
	"github.com/promoloop/reelpipe/internal/service/provider"
	"github.com/promoloop/reelpipe/internal/store"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Store     store.Store
	Quota     *service.QuotaService
	Pipeline  *service.PipelineService
	Executor  *service.ExecutorService
	Retry     *service.RetryService
	Cycle     *service.CycleService
	Stats     *service.StatsService
	Scheduler *service.Scheduler
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := store.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	st := store.NewStore(db)

	// External provider adapters
	hooks := provider.NewHookService(&cfg.Hooks, logger)
	video := provider.NewVideoService(&cfg.Video, logger)
	catalog := provider.NewCatalogService(&cfg.Catalog, logger)
	poster := provider.NewTikTokPoster(&cfg.TikTok, logger)
	notifier := provider.NewWebhookNotifier(&cfg.Notifier, logger)

	// Initialize services
	quota, err := service.NewQuotaService(&cfg.Pipeline, st, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize quota service: %w", err)
	}
	pipeline := service.NewPipelineService(st, quota, hooks, video, catalog, logger)
	executor := service.NewExecutorService(st, quota, poster, logger)
	retry, err := service.NewRetryService(&cfg.Pipeline, st, pipeline, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retry service: %w", err)
	}
	cycle, err := service.NewCycleService(&cfg.Pipeline, &cfg.Scheduler, st, pipeline, executor, notifier, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cycle service: %w", err)
	}
	stats := service.NewStatsService(st, quota, logger)
	scheduler := service.NewScheduler(&cfg.Scheduler, logger, cycle)

	// Create router
	router := gin.New()

	srv := &Server{
		Config:    cfg,
		DB:        db,
		Router:    router,
		Logger:    logger,
		Store:     st,
		Quota:     quota,
		Pipeline:  pipeline,
		Executor:  executor,
		Retry:     retry,
		Cycle:     cycle,
		Stats:     stats,
		Scheduler: scheduler,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// Cron trigger
	cron := s.Router.Group("/cron")
	{
		cron.GET("/tiktok-post", s.cronAuth(), s.handleCronTrigger)
		cron.POST("/tiktok-post", s.apiKeyRequired(), s.handleCronAction)
	}

	// Job and pipeline routes
	tiktok := s.Router.Group("/tiktok")
	{
		jobs := tiktok.Group("/jobs")
		{
			jobs.GET("", s.handleListJobs)
			jobs.POST("", s.apiKeyRequired(), s.handleCreateJobs)
			jobs.POST("/done", s.apiKeyRequired(), s.handleJobsDone)
			jobs.POST("/retry", s.apiKeyRequired(), s.handleJobsRetry)
			jobs.GET("/:id", s.handleGetJob)
			jobs.PUT("/:id", s.apiKeyRequired(), s.handleUpdateJob)
			jobs.PATCH("/:id", s.apiKeyRequired(), s.handleUpdateJob)
			jobs.DELETE("/:id", s.apiKeyRequired(), s.handleDeleteJob)
		}

		pipeline := tiktok.Group("/auto-pipeline")
		{
			pipeline.GET("", s.handlePipelineQuery)
			pipeline.POST("", s.apiKeyRequired(), s.handlePipelineAction)
		}
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Scheduler.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
