package sutureext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/thejerf/suture/v4"
)

func TestSanitizeError(t *testing.T) {
	ctx := context.Background()

	if err := SanitizeError(ctx, nil); err != nil {
		t.Fatalf("nil error became %v", err)
	}

	plain := errors.New("boom")
	if err := SanitizeError(ctx, plain); err != plain {
		t.Fatalf("plain error changed: %v", err)
	}

	err := SanitizeError(ctx, fmt.Errorf("read: %w", context.Canceled))
	if errors.Is(err, context.Canceled) {
		t.Fatalf("stray context error leaked: %v", err)
	}

	err = SanitizeError(ctx, errors.Join(context.DeadlineExceeded, suture.ErrTerminateSupervisorTree))
	if !errors.Is(err, suture.ErrTerminateSupervisorTree) || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected sanitized error: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := SanitizeError(cancelled, plain); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected real context error, got %v", err)
	}
}

func TestTerminateSupervisorTree(t *testing.T) {
	super := NewSimple("test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	Add(super, NewServiceFunc("once", func(ctx context.Context) error {
		return suture.ErrTerminateSupervisorTree
	}))

	err := super.Serve(context.Background())
	if !errors.Is(err, suture.ErrTerminateSupervisorTree) {
		t.Fatalf("expected tree termination, got %v", err)
	}
}
