package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftvault/internal/db"
	"github.com/openmined/syftvault/internal/server/blob"
	"github.com/openmined/syftvault/internal/server/files"
	"github.com/openmined/syftvault/internal/server/handlers/ws"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	config *Config
	server *http.Server
	hub    *ws.WebsocketHub
	db     *sqlx.DB
	files  *files.FileService
}

func New(ctx context.Context, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	conn, err := db.NewSqliteDb(
		db.WithPath(filepath.Join(config.DataDir, "index.db")),
		db.WithMaxOpenConns(4),
		db.WithSchema(files.Schema()),
	)
	if err != nil {
		return nil, err
	}

	backend, err := blob.NewBackend(ctx, &config.Blob, config.DataDir)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return NewWithDeps(config, conn, backend)
}

// NewWithDeps builds a server around an opened index and blob backend
func NewWithDeps(config *Config, conn *sqlx.DB, backend blob.IBlobBackend) (*Server, error) {
	hub := ws.NewHub()
	svc := files.NewFileService(conn, backend)
	svc.OnChange(func(owner string, version uint64) {
		hub.NotifyUser(owner, version)
	})

	handler, err := SetupRoutes(config, svc, hub)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Server{
		config: config,
		hub:    hub,
		db:     conn,
		files:  svc,
		server: &http.Server{
			Addr:              config.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) Hub() *ws.WebsocketHub {
	return s.hub
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	slog.Info("vault server start", "addr", s.config.HTTP.Addr, "dataDir", s.config.DataDir)
	defer slog.Info("vault server stop")

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		s.hub.Run(egCtx)
		return nil
	})

	eg.Go(func() error {
		if err := s.runHttpServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("vault server shutdown signal")
		return s.Stop()
	})

	return eg.Wait()
}

func (s *Server) Stop() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.hub.Shutdown()

	err := s.server.Shutdown(shutdownCtx)
	if dbErr := s.db.Close(); dbErr != nil {
		slog.Error("index close", "error", dbErr)
	}
	return err
}

func (s *Server) runHttpServer() error {
	if s.config.HTTP.TLS() {
		slog.Info("server start tls", "addr", s.config.HTTP.Addr, "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}
