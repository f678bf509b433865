package api

import (
	"context"
	"net/http"
	"time"

	"github.com/keagan/scenesplit/internal/scene"
	"github.com/keagan/scenesplit/internal/session"
	"github.com/rs/zerolog"
)

const Version = "0.1.0"

type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

type ServerConfig struct {
	Addr      string
	Store     *session.Store
	Logger    zerolog.Logger
	StartTime time.Time
	// UploadDir is the parent for per-batch upload directories ("" = os.TempDir)
	UploadDir   string
	MaxUploadMB int64
	// Defaults fill form fields the client leaves out
	Defaults scene.BatchContext
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      0,
			IdleTimeout:       60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
