package transport

import (
	"context"
	"io"
	"sync"
)

var _ Transport = (*Memory)(nil)

const memoryQueueSize = 64

// Memory is one end of an in-process connection created by NewMemoryPair.
// Lines written to one end are read, in order, from the other.
type Memory struct {
	in  <-chan string
	out chan<- string

	done      chan struct{}
	peerDone  <-chan struct{}
	closeOnce sync.Once
}

// NewMemoryPair returns two connected transports.
func NewMemoryPair() (*Memory, *Memory) {
	ab := make(chan string, memoryQueueSize)
	ba := make(chan string, memoryQueueSize)
	aDone := make(chan struct{})
	bDone := make(chan struct{})

	a := &Memory{in: ba, out: ab, done: aDone, peerDone: bDone}
	b := &Memory{in: ab, out: ba, done: bDone, peerDone: aDone}
	return a, b
}

// Connect implements Transport.
func (m *Memory) Connect(ctx context.Context) error { return nil }

// ReadLine implements Transport. Once the peer closes, buffered lines are
// still delivered before io.EOF.
func (m *Memory) ReadLine(ctx context.Context) (string, error) {
	select {
	case line := <-m.in:
		return line, nil
	case <-m.done:
		return "", io.EOF
	case <-m.peerDone:
		select {
		case line := <-m.in:
			return line, nil
		default:
			return "", io.EOF
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// WriteLine implements Transport.
func (m *Memory) WriteLine(ctx context.Context, line string) error {
	if err := checkLine(line); err != nil {
		return err
	}
	select {
	case <-m.done:
		return ErrClosed
	case <-m.peerDone:
		return ErrClosed
	default:
	}
	select {
	case m.out <- line:
		return nil
	case <-m.done:
		return ErrClosed
	case <-m.peerDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements Transport.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}
