// Package server exposes the engine over HTTP: query, workflow execution,
// graph inspection and health endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/controlgraph"
	"github.com/soundprediction/controlgraph/pkg/config"
	"github.com/soundprediction/controlgraph/pkg/server/handlers"
)

// Server represents the HTTP server
type Server struct {
	config *config.Config
	router *gin.Engine
	engine *controlgraph.Client
	server *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, engine *controlgraph.Client) *Server {
	return &Server{
		config: cfg,
		engine: engine,
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	// Set gin mode
	gin.SetMode(s.config.Server.Mode)

	// Create router
	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())

	// Setup routes
	s.setupRoutes()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// setupRoutes sets up all the routes
func (s *Server) setupRoutes() {
	// Create handlers
	healthHandler := handlers.NewHealthHandler(s.engine)
	queryHandler := handlers.NewQueryHandler(s.engine)
	workflowHandler := handlers.NewWorkflowHandler(s.engine)
	graphHandler := handlers.NewGraphHandler(s.engine)

	// Health endpoints
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/query", queryHandler.Query)
		v1.POST("/workflows/run", workflowHandler.Run)

		graph := v1.Group("/graph")
		{
			graph.GET("/stats", graphHandler.Stats)
			graph.GET("/entities/:id", graphHandler.Entity)
		}
	}
}

// Router returns the configured router, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
