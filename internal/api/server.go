// Package api exposes the backtest service over HTTP: run a backtest, list
// stored runs and pull their orders and equity curves. All routes except
// login sit behind JWT auth.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"meanrev/internal/store"
)

// ServerConfig holds the HTTP-facing settings.
type ServerConfig struct {
	ListenAddr       string
	JWTSecret        string
	OperatorPassword string
	// Release switches gin out of debug mode.
	Release bool
}

// Server wires the store and engine runner behind the HTTP routes.
type Server struct {
	cfg   ServerConfig
	store *store.Store
	http  *http.Server
}

// NewServer builds the server; Run/Shutdown manage its lifecycle.
func NewServer(cfg ServerConfig, st *store.Store) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.OperatorPassword == "" {
		return nil, errors.New("operator password is required")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	return &Server{cfg: cfg, store: st}, nil
}

// Router assembles the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	if s.cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(CORSMiddleware())
	r.Use(RateLimitMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/api/auth/login", s.login)

	authed := r.Group("/api", AuthMiddleware(s.cfg.JWTSecret))
	{
		authed.POST("/backtest", s.runBacktest)
		authed.GET("/runs", s.listRuns)
		authed.GET("/runs/:id", s.getRun)
		authed.GET("/runs/:id/orders", s.getRunOrders)
		authed.GET("/runs/:id/equity", s.getRunEquity)
	}
	return r
}

// Run serves until the context ends, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] api listening on %s", s.cfg.ListenAddr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
