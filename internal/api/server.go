package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/database"
	"smc-signal-engine/internal/pipeline"
)

// Server exposes the engine over HTTP: on-demand evaluation, decision
// history, health, and a websocket signal feed.
type Server struct {
	cfg      config.ServerConfig
	pipeline *pipeline.Pipeline
	repo     *database.DecisionRepository // nil when persistence is disabled
	hub      *WSHub
	logger   zerolog.Logger
	srv      *http.Server
}

// NewServer creates the API server and registers routes
func NewServer(cfg config.ServerConfig, pl *pipeline.Pipeline, repo *database.DecisionRepository, hub *WSHub, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: pl,
		repo:     repo,
		hub:      hub,
		logger:   logger.With().Str("component", "api").Logger(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/evaluate", s.handleEvaluate)
		v1.GET("/decisions/recent", s.handleRecentDecisions)
	}

	router.GET("/ws", func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})

	s.srv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}
	return s
}

// Start begins serving. It blocks until the listener stops.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("api server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

type evaluateRequest struct {
	Symbol    string `json:"symbol" binding:"required"`
	Timeframe string `json:"timeframe" binding:"required"`
}

// handleEvaluate runs one on-demand evaluation and returns the structured
// decision, whatever the outcome.
func (s *Server) handleEvaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tf, err := analysis.ParseTimeframe(req.Timeframe)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dec := s.pipeline.Evaluate(c.Request.Context(), req.Symbol, tf)
	c.JSON(http.StatusOK, dec)
}

func (s *Server) handleRecentDecisions(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision history persistence disabled"})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}

	records, err := s.repo.Recent(c.Request.Context(), c.Query("symbol"), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("decision history query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": records})
}
