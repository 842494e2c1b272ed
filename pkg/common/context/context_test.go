package context

import (
	"context"
	"testing"
	"time"
)

func TestWithOptionalTimeout(t *testing.T) {
	t.Run("no deadline for zero timeout", func(t *testing.T) {
		ctx, cancel := WithOptionalTimeout(context.Background(), 0)
		defer cancel()
		if _, ok := ctx.Deadline(); ok {
			t.Fatal("expected no deadline")
		}
		cancel()
		if !IsCanceled(ctx) {
			t.Fatal("expected canceled after cancel()")
		}
		if IsTimedOut(ctx) {
			t.Fatal("cancel should not be reported as timeout")
		}
	})

	t.Run("deadline for positive timeout", func(t *testing.T) {
		ctx, cancel := WithOptionalTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if _, ok := ctx.Deadline(); !ok {
			t.Fatal("expected a deadline")
		}
		<-ctx.Done()
		if !IsTimedOut(ctx) {
			t.Fatalf("expected timeout, got %v", ctx.Err())
		}
	})
}

func TestSleep(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("Sleep returned early")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
