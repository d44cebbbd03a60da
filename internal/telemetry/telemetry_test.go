package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/config"
)

func TestSetup_disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracingConfig{}, "test")
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSetup_enabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracingConfig{
		OTLPEndpoint: "http://127.0.0.1:4318",
		ServiceName:  "kotae-test",
	}, "test")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// nothing was exported, so shutdown does not need a collector
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
