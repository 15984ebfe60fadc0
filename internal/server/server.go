// Package server exposes the per-domain admin API: health, Prometheus
// metrics, execution monitoring, registry inspection, and an operator
// endpoint for publishing workflow trigger events.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crossmesh/datashare/internal/config"
	"github.com/crossmesh/datashare/internal/logger"
)

// Server wraps the admin HTTP server.
type Server struct {
	httpServer *http.Server
	log        logger.Logger
}

// New builds the admin server. gatherer serves /metrics; pass the registry
// the service's collectors were registered with.
func New(cfg config.ServerConfig, handler *Handler, gatherer prometheus.Gatherer, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	setupRoutes(router, handler, gatherer)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Address(),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log: log,
	}
}

func setupRoutes(router *gin.Engine, handler *Handler, gatherer prometheus.Gatherer) {
	router.GET("/health", handler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	v1.GET("/executions", handler.ListExecutions)
	v1.GET("/executions/:execution_id", handler.GetExecution)
	v1.GET("/domains", handler.ListDomains)
	v1.GET("/domains/:domain_id", handler.GetDomain)
	v1.POST("/data-products", handler.PublishDataProduct)
}

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.log.Info("Starting admin server", logger.String("address", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down admin server")
	return s.httpServer.Shutdown(ctx)
}
