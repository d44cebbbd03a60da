// Package mcp exposes ingestion and question answering as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Backend runs the user actions behind the tools. *pipeline.Pipeline implements it.
type Backend interface {
	Ingest(ctx context.Context, paths []string, opts pipeline.IngestOptions) (*pipeline.IngestReport, error)
	Ask(ctx context.Context, sess *session.Session, question string, k int) (*session.Turn, error)
	Status(ctx context.Context) (*pipeline.Status, error)
}

// Server is the MCP server for kotae. Questions asked through one server
// share a single conversation history.
type Server struct {
	backend Backend
	session *session.Session
	logger  *zap.Logger
	server  *mcp.Server
}

// NewServer creates an MCP server with the ingest, ask and status tools registered.
func NewServer(backend Backend, version string, logger *zap.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("mcp server requires a backend")
	}
	impl := &mcp.Implementation{
		Name:    "kotae",
		Version: version,
	}
	s := &Server{
		backend: backend,
		session: session.New(""),
		logger:  utils.NopIfNil(logger),
		server:  mcp.NewServer(impl, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	s.logger.Info("Starting MCP server", zap.String("addr", addr))
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
