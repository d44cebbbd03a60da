package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/pipeline"
)

// IngestInput is the input schema for the ingest tool.
type IngestInput struct {
	Paths []string `json:"paths" jsonschema:"absolute paths of pdf, docx, pptx, csv, xlsx, txt or md files to ingest"`
	Fresh bool     `json:"fresh,omitempty" jsonschema:"empty the collection before storing these documents"`
}

// IngestOutput is the output schema for the ingest tool.
type IngestOutput struct {
	TraceID      string                   `json:"trace_id"`
	Files        int                      `json:"files"`
	Failures     []pipeline.FailureReport `json:"failures"`
	ChunksStored int                      `json:"chunks_stored"`
	TotalChunks  int                      `json:"total_chunks"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the ingested documents"`
	K        int    `json:"k,omitempty" jsonschema:"number of chunks to retrieve (default 5)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	TraceID string   `json:"trace_id"`
	Turns   int      `json:"turns"`
}

// StatusInput is the (empty) input schema for the status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the status tool.
type StatusOutput struct {
	Collection string `json:"collection"`
	Embedder   string `json:"embedder"`
	Generator  string `json:"generator"`
	Chunks     int    `json:"chunks"`
	Sources    int    `json:"sources"`
	DiskBytes  int64  `json:"disk_bytes"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest",
		Description: "Extract, chunk and index documents so questions can be answered from them",
	}, s.handleIngest)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using only the ingested documents, citing source files",
	}, s.handleAsk)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "status",
		Description: "Report the collection size, sources and configured providers",
	}, s.handleStatus)
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if len(input.Paths) == 0 {
		return nil, IngestOutput{}, errors.New("paths is required")
	}
	report, err := s.backend.Ingest(ctx, input.Paths, pipeline.IngestOptions{Fresh: input.Fresh})
	if err != nil {
		s.logger.Error("mcp ingest failed", zap.Error(err))
		return nil, IngestOutput{}, err
	}
	return nil, IngestOutput{
		TraceID:      report.TraceID,
		Files:        len(report.Files),
		Failures:     report.Failures,
		ChunksStored: report.ChunksStored,
		TotalChunks:  report.TotalChunks,
	}, nil
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	turn, err := s.backend.Ask(ctx, s.session, input.Question, input.K)
	if err != nil {
		s.logger.Error("mcp ask failed", zap.Error(err))
		return nil, AskOutput{}, err
	}
	return nil, AskOutput{
		Answer:  turn.Answer,
		Sources: turn.Sources,
		TraceID: turn.Trace.TraceID,
		Turns:   s.session.Len(),
	}, nil
}

func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	status, err := s.backend.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	c := status.Collection
	return nil, StatusOutput{
		Collection: c.Name,
		Embedder:   c.Embedder,
		Generator:  status.Generator,
		Chunks:     c.Chunks,
		Sources:    len(c.Sources),
		DiskBytes:  c.DiskBytes,
	}, nil
}
