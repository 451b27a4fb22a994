// Package server is the reference catalog and price prediction service the
// client commands talk to.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze/internal/metrics"
	"github.com/goliatone/go-drivalyze/pkg/dataset"
)

// Server wires the dataset, the estimator and the HTTP routes.
type Server struct {
	source      *dataset.Source
	estimator   *Estimator
	metrics     *metrics.Metrics
	logger      *zap.Logger
	corsOrigins []string
	schema      map[string]any
	router      *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables /metrics and request instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithCORSOrigins lists the origins allowed to call the API from a browser.
// "*" allows any origin.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// New builds the server and its router.
func New(source *dataset.Source, estimator *Estimator, opts ...Option) (*Server, error) {
	if source == nil || estimator == nil {
		return nil, errors.New("server: dataset source and estimator are required")
	}
	s := &Server{
		source:    source,
		estimator: estimator,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	schema, err := buildSchema()
	if err != nil {
		return nil, err
	}
	s.schema = schema
	if s.metrics != nil {
		stats := source.Current().Stats()
		s.metrics.SetDatasetSize(stats.Brands, stats.Models)
	}
	s.router = s.routes()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	// Match on the escaped path so a brand or model containing "/" arrives
	// as one parameter.
	router.UseRawPath = true
	router.UnescapePathValues = true
	router.Use(gin.Recovery(), s.requestLogger(), s.cors())
	if s.metrics != nil {
		router.Use(s.metrics.Middleware())
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := router.Group("/api")
	{
		api.GET("/brands", s.handleBrands)
		api.GET("/models/:brand", s.handleModels)
		api.GET("/fuel-types", s.handleFuelTypes)
		api.GET("/fuel-types/:brand/:model", s.handleFuelTypesFor)
		api.GET("/years", s.handleYears)
		api.GET("/transmissions", s.handleTransmissions)
		api.POST("/reload", s.handleReload)
		api.GET("/schema", s.handleSchema)
	}
	router.POST("/predict", s.handlePredict)
	router.GET("/health", s.handleHealth)
	return router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && s.originAllowed(origin) {
			if slices.Contains(s.corsOrigins, "*") {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.corsOrigins, "*") || slices.Contains(s.corsOrigins, origin)
}
