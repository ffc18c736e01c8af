package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"catsync/internal/api/handlers"
	"catsync/internal/api/middleware"
	"catsync/internal/catalog"
	"catsync/internal/config"
	"catsync/internal/database"
	"catsync/internal/logger"
	"catsync/internal/queue"
	"catsync/internal/store"
	"catsync/internal/sync"

	"github.com/gin-gonic/gin"
)

type Server struct {
	config *config.Config
	logger *logger.Logger
	db     *database.Database
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, db *database.Database) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())

	// Wire the sync engine
	st := store.New(db.DB, logger)
	api := catalog.NewClient(cfg.CatalogAPIURL, cfg.CatalogAccessToken, logger)
	eval := sync.NewEvaluator(cfg)
	cache := sync.NewIDCache(st, api, cfg.CatalogID, logger)
	rec := sync.NewReconciler(cfg, st, api, cache, eval, logger)
	lock := sync.NewLock(cfg.SyncLockTimeout)
	orch := sync.NewOrchestrator(cfg, st, api, eval, rec, lock, logger)

	// Without Kafka the orchestrator falls back to the synchronous
	// foreground loop.
	var runner sync.Runner
	if cfg.KafkaBrokers != "" {
		q := queue.New(db.DB, cfg.KafkaBrokers, logger)
		rec.SetRunner(q)
		orch.SetRunner(q)
		runner = q
	}

	// Initialize handlers
	productHandler := handlers.NewProductHandler(st, logger)
	syncHandler := handlers.NewSyncHandler(cfg, orch, rec, st, runner, logger)

	// Routes
	v1 := router.Group("/api/v1")
	{
		// Products
		products := v1.Group("/products")
		{
			products.GET("", productHandler.List)
			products.GET("/:id", productHandler.Get)
			products.POST("", productHandler.Create)
			products.PUT("/:id", productHandler.Update)
			products.DELETE("/:id", productHandler.Delete)

			products.POST("/:id/sync", syncHandler.SyncProduct)
			products.DELETE("/:id/remote", syncHandler.DeleteRemote)
			products.POST("/:id/visibility", syncHandler.SetVisibility)
			products.POST("/:id/reset", syncHandler.ResetProduct)
		}

		// Catalog sync
		syncGroup := v1.Group("/sync")
		{
			syncGroup.POST("", syncHandler.SyncAll)
			syncGroup.GET("/status", syncHandler.Status)
			syncGroup.POST("/reset", syncHandler.ResetAll)
		}
	}

	return &Server{
		config: cfg,
		logger: logger,
		db:     db,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}
