package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestStreamReadsLinesThenEOF(t *testing.T) {
	t.Parallel()

	s := NewStream(strings.NewReader("one\r\ntwo\nthree"), io.Discard)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	for _, want := range []string{"one", "two", "three"} {
		got, err := s.ReadLine(ctx)
		if err != nil {
			t.Fatalf("ReadLine: %v", err)
		}
		if got != want {
			t.Fatalf("ReadLine = %q, want %q", got, want)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := s.ReadLine(ctx); !errors.Is(err, io.EOF) {
			t.Fatalf("expected io.EOF, got %v", err)
		}
	}
}

func TestStreamWriteLineFlushes(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	s := NewStream(strings.NewReader(""), pw, WithCloser(pw))
	t.Cleanup(func() { _ = s.Close() })

	got := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(pr).ReadString('\n')
		got <- line
	}()

	if err := s.WriteLine(context.Background(), `{"jsonrpc":"2.0"}`); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	select {
	case line := <-got:
		if line != "{\"jsonrpc\":\"2.0\"}\n" {
			t.Fatalf("wrote %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("line was not flushed")
	}
}

func TestStreamRejectsEmbeddedNewline(t *testing.T) {
	t.Parallel()

	s := NewStream(strings.NewReader(""), io.Discard)
	if err := s.WriteLine(context.Background(), "a\nb"); !errors.Is(err, ErrNewlineInMessage) {
		t.Fatalf("expected ErrNewlineInMessage, got %v", err)
	}
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	s := NewStream(pr, io.Discard, WithCloser(pr))

	readErr := make(chan error, 1)
	go func() {
		_, err := s.ReadLine(context.Background())
		readErr <- err
	}()

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	select {
	case err := <-readErr:
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
			t.Fatalf("blocked ReadLine returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLine did not unblock on Close")
	}
	if err := s.WriteLine(context.Background(), "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("WriteLine after Close = %v, want ErrClosed", err)
	}
	_ = pw.Close()
}

func TestStreamReadLineHonorsContext(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	s := NewStream(pr, io.Discard)
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.ReadLine(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStreamWriteLineGivesUpOnClose(t *testing.T) {
	t.Parallel()

	// Nobody reads pr, so the first write stalls in the sink.
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pr.Close() })
	s := NewStream(strings.NewReader(""), pw)

	errc := make(chan error, 1)
	go func() { errc <- s.WriteLine(context.Background(), `{"jsonrpc":"2.0"}`) }()

	select {
	case err := <-errc:
		t.Fatalf("write returned before close: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WriteLine stayed blocked after Close")
	}
	if err := s.WriteLine(context.Background(), `{}`); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}
