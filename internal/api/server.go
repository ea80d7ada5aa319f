// Package api serves the admin HTTP API of the bot.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghetolay/WowBot/internal/api/middleware"
	"github.com/ghetolay/WowBot/internal/crypto"
	"github.com/ghetolay/WowBot/internal/dynmsg"
	"github.com/ghetolay/WowBot/internal/logger"
	"github.com/ghetolay/WowBot/internal/metrics"
)

// Scopes checked on protected routes.
const (
	ScopeRead  = "entities:read"
	ScopeWrite = "entities:write"
)

// Options configures the server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	// JWT enables bearer authentication on /v1 when set.
	JWT     *crypto.JWTManager
	Tracker *dynmsg.Tracker
	Metrics *metrics.Metrics
	Version string
	Debug   bool
}

// Server is the admin API.
type Server struct {
	opts   Options
	router *gin.Engine
	http   *http.Server
}

// New builds the routes.
func New(opts Options) *Server {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
	}))
	router.Use(middleware.LoggingMiddleware())

	s := &Server{opts: opts, router: router}

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Welcome to WowBot!")
	})
	router.GET("/healthz", s.health)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1")
	if opts.JWT != nil {
		v1.Use(middleware.AuthMiddleware(opts.JWT))
	}
	h := &entityHandler{tracker: opts.Tracker}
	{
		read := v1.Group("", middleware.RequireScope(ScopeRead))
		read.GET("/entities", h.list)
		read.GET("/entities/:id", h.get)

		write := v1.Group("", middleware.RequireScope(ScopeWrite))
		write.POST("/entities/:id/refresh", h.refresh)
		write.POST("/entities/:id/status", h.setStatus)
	}
	return s
}

// Handler exposes the routes, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) health(c *gin.Context) {
	entities := 0
	if s.opts.Tracker != nil {
		entities = s.opts.Tracker.Len()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.opts.Version, "entities": entities})
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("[api] listening on %s", s.opts.Addr)
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
