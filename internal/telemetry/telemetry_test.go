package telemetry

import (
	"context"
	"testing"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Tracer() == nil {
		t.Error("expected a non-nil tracer even when disabled")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on a no-op provider error = %v", err)
	}
}

func TestNew_Enabled(t *testing.T) {
	p, err := New(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "polyarb-test",
		OTLPEndpoint: "localhost:4318",
		Insecure:     true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Tracer() == nil {
		t.Error("expected a non-nil tracer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Shutdown(ctx); err == nil {
		t.Log("shutdown on a cancelled context did not error, which is acceptable for a batcher with nothing queued")
	}
}
