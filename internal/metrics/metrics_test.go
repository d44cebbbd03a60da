package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hyperjump/kotae/internal/trace"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.FilesIngested(2, 1)
	m.ChunksStored(7, 7)
	m.Question(nil, 120*time.Millisecond)
	m.Question(errors.New("boom"), time.Second)
	m.Record(context.Background(), trace.New(trace.AgentIngestion, trace.AgentRetrieval, trace.TypeDocumentParsed, nil, ""))

	if got := testutil.ToFloat64(m.filesIngested.WithLabelValues(StatusOK)); got != 2 {
		t.Errorf("files ok: %v", got)
	}
	if got := testutil.ToFloat64(m.filesIngested.WithLabelValues(StatusFailed)); got != 1 {
		t.Errorf("files failed: %v", got)
	}
	if got := testutil.ToFloat64(m.chunksTotal); got != 7 {
		t.Errorf("collection chunks: %v", got)
	}
	if got := testutil.ToFloat64(m.questions.WithLabelValues(StatusFailed)); got != 1 {
		t.Errorf("failed questions: %v", got)
	}
	if got := testutil.ToFloat64(m.traceMessages.WithLabelValues("DOCUMENT_PARSED")); got != 1 {
		t.Errorf("trace messages: %v", got)
	}
	m.CollectionSize(0)
	if got := testutil.ToFloat64(m.chunksTotal); got != 0 {
		t.Errorf("collection chunks after reset: %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"kotae_questions_total", "kotae_ask_duration_seconds_bucket", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %s", want)
		}
	}
}

func TestMetrics_nilIsNoop(t *testing.T) {
	var m *Metrics
	m.FilesIngested(1, 1)
	m.ChunksStored(1, 1)
	m.CollectionSize(1)
	m.Question(nil, time.Second)
	m.Record(context.Background(), trace.Message{})
}
