// Package server exposes the prediction pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Cardeon/internal/database"
	"github.com/Alias1177/Cardeon/internal/pipeline"
	"github.com/Alias1177/Cardeon/internal/report"
)

const maxBodyBytes = 1 << 20

// Server holds the handler dependencies. Store is optional.
type Server struct {
	newPipeline func() *pipeline.Pipeline
	exporter    *report.Exporter
	store       database.CheckupStore
	logger      zerolog.Logger
}

// New creates a server. newPipeline is called once per request so concurrent
// requests never contend for one pipeline.
func New(newPipeline func() *pipeline.Pipeline, exporter *report.Exporter, store database.CheckupStore) *Server {
	return &Server{
		newPipeline: newPipeline,
		exporter:    exporter,
		store:       store,
		logger:      log.With().Str("component", "http_server").Logger(),
	}
}

// Router builds the gin engine with all routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(
		requestLogger(s.logger),
		gin.Recovery(),
		limitBodySize(maxBodyBytes),
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", s.ready)

	api := router.Group("/api")
	{
		api.POST("/predict", s.predict)
		api.POST("/report", s.report)
	}

	if s.store != nil {
		checkups := api.Group("/checkups")
		{
			checkups.GET("/:userID", s.listCheckups)
			checkups.POST("/:userID", s.createCheckup)
		}
	}

	return router
}

func (s *Server) ready(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"db":     "unhealthy: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}
