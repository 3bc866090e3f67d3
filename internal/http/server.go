// Package http provides the admin/status HTTP surface operators use to
// watch a running backup/restore job and scrape Prometheus metrics. It is
// an operability add-on, not part of the pipeline described in §1 — a
// one-shot CLI invocation of `backy backup`/`backy restore` never needs it
// running, but a long-lived deployment wiring BackyDB into a scheduler can
// start it alongside the pipeline for liveness/readiness probes.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/backydb/internal/jobstore"
	"github.com/allisson/backydb/internal/metrics"
)

// Server is the admin HTTP surface: health/readiness probes, a Prometheus
// /metrics endpoint, and a read-only /jobs view over jobstore.Store,
// modeled on the teacher's own internal/http/server.go (Gin router, slog
// logging middleware, manual http.Server for shutdown control) trimmed and
// extended to BackyDB's operational surface.
type Server struct {
	db              *sql.DB
	metricsProvider *metrics.Provider
	jobStore        jobstore.Store
	logger          *slog.Logger
	router          *gin.Engine
	server          *http.Server
}

// NewServer builds the admin server. metricsProvider may be nil when
// Settings.MetricsEnabled is false, in which case /metrics is not
// registered and no request is timed. jobStore may be nil when no metadata
// database is configured, in which case /jobs reports 503. Call SetDB once
// a database connection is available, so /readyz can report on it; until
// then /readyz reports "unknown".
func NewServer(host string, port int, logger *slog.Logger, metricsProvider *metrics.Provider, metricsNamespace, corsOrigins string, jobStore jobstore.Store) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(SlogMiddleware(logger))
	if mw := corsMiddleware(corsOrigins, logger); mw != nil {
		router.Use(mw)
	}
	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), metricsNamespace))
	}

	s := &Server{
		metricsProvider: metricsProvider,
		jobStore:        jobStore,
		logger:          logger,
		router:          router,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	router.GET("/healthz", s.healthHandler)
	router.GET("/readyz", s.readyHandler)
	router.GET("/jobs", s.listJobsHandler)
	router.GET("/jobs/:id", s.getJobHandler)
	if metricsProvider != nil {
		router.GET("/metrics", gin.WrapH(metricsProvider.Handler()))
	}

	return s
}

// SetDB attaches a database handle so /readyz can ping it.
func (s *Server) SetDB(db *sql.DB) {
	s.db = db
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) readyHandler(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "database": "unknown"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("readiness check failed", slog.Any("err", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "database": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "database": "ok"})
}

func (s *Server) listJobsHandler(c *gin.Context) {
	if s.jobStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job tracking disabled: no metadata database configured"})
		return
	}

	jobs, err := s.jobStore.List(c.Request.Context(), 50)
	if err != nil {
		s.logger.Error("failed to list jobs", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) getJobHandler(c *gin.Context) {
	if s.jobStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job tracking disabled: no metadata database configured"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := s.jobStore.Get(c.Request.Context(), id)
	if err != nil {
		if err == jobstore.ErrJobNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		s.logger.Error("failed to get job", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Start runs the admin server until the context is cancelled or the
// server's own Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting admin http server", slog.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down admin http server")
	return s.server.Shutdown(ctx)
}
