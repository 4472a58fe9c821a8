// Package transport provides the line-oriented duplex channels the protocol
// engine reads from and writes to.
//
// Every implementation frames one JSON-RPC message per line. WriteLine
// appends the terminator and flushes before returning, and Close is
// idempotent. Three implementations are provided:
//
//   - Stream wraps any io.Reader / io.Writer pair (NewStdio binds it to the
//     process's standard streams).
//   - Memory is one end of an in-process pair created by NewMemoryPair,
//     useful for exercising both sides of a connection in tests.
//   - Command spawns a subprocess and talks to it over its stdin/stdout.
package transport

import (
	"context"
	"errors"
	"strings"
)

// ErrClosed is returned by WriteLine once the transport (or, for paired
// transports, its peer) has been closed.
var ErrClosed = errors.New("transport closed")

// ErrNewlineInMessage is returned when a caller tries to write a line that
// would break framing.
var ErrNewlineInMessage = errors.New("transport: message contains a newline")

// Transport is a line-oriented duplex channel.
type Transport interface {
	// Connect performs any handshake needed before the first read or write.
	Connect(ctx context.Context) error
	// ReadLine blocks until a full line is available and returns it without
	// the terminator. It returns io.EOF once the stream has ended.
	ReadLine(ctx context.Context) (string, error)
	// WriteLine writes line followed by a newline and flushes it. It is safe
	// for concurrent use.
	WriteLine(ctx context.Context, line string) error
	// Close releases the transport's resources. It may be called more than once.
	Close() error
}

func checkLine(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return ErrNewlineInMessage
	}
	return nil
}
