package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var _ Transport = (*Stream)(nil)

// Stream is a Transport over an arbitrary reader and writer.
type Stream struct {
	log *slog.Logger

	r       *bufio.Reader
	lines   chan string
	eof     chan struct{}
	readErr error

	// writes is served by one writer goroutine; callers stop waiting once
	// done is closed.
	writes    chan writeReq
	w         *bufio.Writer
	writeOnce sync.Once

	closers   []io.Closer
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

type writeReq struct {
	line string
	errc chan error
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithCloser registers c to be closed when the Stream is closed. Callers use
// it to release the file handles or pipes backing the reader and writer.
func WithCloser(c io.Closer) StreamOption {
	return func(s *Stream) {
		if c != nil {
			s.closers = append(s.closers, c)
		}
	}
}

// WithStreamLogger sets the logger used for diagnostics.
func WithStreamLogger(l *slog.Logger) StreamOption {
	return func(s *Stream) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStream wraps r and w. Neither is closed by Close unless registered with
// WithCloser.
func NewStream(r io.Reader, w io.Writer, opts ...StreamOption) *Stream {
	s := &Stream{
		log:    slog.Default(),
		r:      bufio.NewReader(r),
		w:      bufio.NewWriter(w),
		writes: make(chan writeReq),
		lines:  make(chan string),
		eof:    make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStdio returns a Stream over the process's standard input and output.
// Closing it closes standard input; standard output is left open so that it
// can still be flushed by other writers.
func NewStdio(opts ...StreamOption) *Stream {
	return NewStream(os.Stdin, os.Stdout, append([]StreamOption{WithCloser(os.Stdin)}, opts...)...)
}

// Connect starts the background reader. It is called implicitly by ReadLine.
func (s *Stream) Connect(ctx context.Context) error {
	s.start()
	return nil
}

func (s *Stream) start() {
	s.startOnce.Do(func() { go s.readLoop() })
}

// readLoop uses bufio.Reader rather than bufio.Scanner so that long lines are
// not rejected.
func (s *Stream) readLoop() {
	defer close(s.eof)
	for {
		line, err := s.r.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			select {
			case s.lines <- line:
			case <-s.done:
				s.readErr = io.EOF
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("transport.stream.read.err", slog.String("err", err.Error()))
			}
			s.readErr = err
			return
		}
	}
}

// ReadLine implements Transport.
func (s *Stream) ReadLine(ctx context.Context) (string, error) {
	s.start()
	select {
	case line := <-s.lines:
		return line, nil
	case <-s.eof:
		select {
		case <-s.done:
			return "", io.EOF
		default:
		}
		return "", s.readErr
	case <-s.done:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// WriteLine implements Transport.
func (s *Stream) WriteLine(ctx context.Context, line string) error {
	if err := checkLine(line); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	s.writeOnce.Do(func() { go s.writeLoop() })

	req := writeReq{line: line, errc: make(chan error, 1)}
	select {
	case s.writes <- req:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// Once handed over the line is written whole; only Close abandons the wait.
	select {
	case err := <-req.errc:
		return err
	case <-s.done:
		return ErrClosed
	}
}

// writeLoop owns w. A write stuck on a sink that is never drained keeps this
// goroutine until a registered closer releases the sink.
func (s *Stream) writeLoop() {
	for {
		select {
		case req := <-s.writes:
			req.errc <- s.flush(req.line)
		case <-s.done:
			return
		}
	}
}

func (s *Stream) flush(line string) error {
	if _, err := s.w.WriteString(line); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	return s.w.Flush()
}

// Close implements Transport.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		for _, c := range s.closers {
			err = errors.Join(err, c.Close())
		}
	})
	return err
}
