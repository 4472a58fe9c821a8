package transport

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestMemoryPairExchangesLinesInOrder(t *testing.T) {
	t.Parallel()

	a, b := NewMemoryPair()
	t.Cleanup(func() { _ = a.Close(); _ = b.Close() })
	ctx := context.Background()

	for _, l := range []string{"1", "2", "3"} {
		if err := a.WriteLine(ctx, l); err != nil {
			t.Fatalf("WriteLine: %v", err)
		}
	}
	for _, want := range []string{"1", "2", "3"} {
		got, err := b.ReadLine(ctx)
		if err != nil || got != want {
			t.Fatalf("ReadLine = %q, %v; want %q", got, err, want)
		}
	}

	if err := b.WriteLine(ctx, "reply"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	if got, err := a.ReadLine(ctx); err != nil || got != "reply" {
		t.Fatalf("ReadLine = %q, %v", got, err)
	}
}

func TestMemoryPeerCloseDrainsThenEOF(t *testing.T) {
	t.Parallel()

	a, b := NewMemoryPair()
	ctx := context.Background()

	if err := a.WriteLine(ctx, "last"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	got, err := b.ReadLine(ctx)
	if err != nil || got != "last" {
		t.Fatalf("ReadLine = %q, %v; want buffered line", got, err)
	}
	if _, err := b.ReadLine(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if err := b.WriteLine(ctx, "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("WriteLine to closed peer = %v, want ErrClosed", err)
	}
}

func TestMemoryReadLineUnblocksOnClose(t *testing.T) {
	t.Parallel()

	a, b := NewMemoryPair()
	t.Cleanup(func() { _ = b.Close() })

	errCh := make(chan error, 1)
	go func() {
		_, err := a.ReadLine(context.Background())
		errCh <- err
	}()
	_ = a.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected io.EOF, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLine did not unblock")
	}
}
