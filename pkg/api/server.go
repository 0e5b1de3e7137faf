// Package api exposes the stateless parts of the protocol over HTTP: device
// generation, ksid derivation and frame encoding. It is a debugging aid for
// tools that cannot link the Go packages directly.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Server is the HTTP API server
type Server struct {
	router     *gin.Engine
	addr       string
	httpServer *http.Server
	limiter    *RateLimiter
	log        zerolog.Logger
	started    time.Time
}

// Config holds server configuration
type Config struct {
	Addr         string
	EnableCORS   bool
	RateLimit    int // requests per minute per client, 0 disables
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:8090",
		EnableCORS:   true,
		RateLimit:    600,
		MaxBodyBytes: 4 << 20,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// NewServer creates a new HTTP API server
func NewServer(config *Config, log zerolog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router:  gin.New(),
		addr:    config.Addr,
		log:     log,
		started: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.setupMiddleware(config)
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware(config *Config) {
	s.router.Use(gin.Recovery())
	if config.EnableCORS {
		s.router.Use(CORSMiddleware())
	}
	if config.RateLimit > 0 {
		s.limiter = NewRateLimiter(config.RateLimit)
		s.router.Use(RateLimitMiddleware(s.limiter))
	}
	s.router.Use(LoggingMiddleware(s.log))
	if config.MaxBodyBytes > 0 {
		s.router.Use(BodyLimitMiddleware(config.MaxBodyBytes))
	}
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		dev := v1.Group("/device")
		{
			dev.POST("/random", s.handleRandomDevice)
			dev.POST("/ksid", s.handleKsid)
		}

		packet := v1.Group("/packet")
		{
			packet.POST("/encode", s.handleEncode)
			packet.POST("/decode", s.handleDecode)
		}

		v1.GET("/protocols", s.handleProtocols)
	}

	s.router.GET("/health", s.handleHealth)
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("http api listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down http api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// Stop shuts the server down and releases the rate limiter
func (s *Server) Stop(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Close()
	}
	return s.httpServer.Shutdown(ctx)
}
