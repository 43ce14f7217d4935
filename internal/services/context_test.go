package services_test

import (
	"context"
	"testing"

	"scriptorium/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithWorkID(ctx, "ms-0042")
	ctx = services.WithActionID(ctx, 42)
	ctx = services.WithAction(ctx, "validate-metadata")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.WorkIDFromContext(ctx); !ok || id != "ms-0042" {
		t.Fatalf("unexpected work id: %v %v", id, ok)
	}
	if id, ok := services.ActionIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected action id: %v %v", id, ok)
	}
	if action, ok := services.ActionFromContext(ctx); !ok || action != "validate-metadata" {
		t.Fatalf("unexpected action: %v %v", action, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithAction(ctx, "")
	ctx = services.WithWorkID(ctx, "")
	if _, ok := services.ActionFromContext(ctx); ok {
		t.Fatal("expected no action value")
	}
	if _, ok := services.WorkIDFromContext(ctx); ok {
		t.Fatal("expected no work id value")
	}
	if _, ok := services.ActionIDFromContext(ctx); ok {
		t.Fatal("expected no action id value")
	}
}
