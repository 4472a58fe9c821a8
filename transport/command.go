package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

var _ Transport = (*Command)(nil)

// DefaultCommandGracePeriod is how long Close waits for the child to exit
// after its stdin is closed before killing it.
const DefaultCommandGracePeriod = 5 * time.Second

// Command is a Transport that speaks to a subprocess over its standard input
// and output. The process is started by Connect.
type Command struct {
	cmd    *exec.Cmd
	stream *Stream
	grace  time.Duration

	startOnce sync.Once
	startErr  error
	started   bool

	closeOnce sync.Once
	closeErr  error
}

// CommandOption configures a Command.
type CommandOption func(*Command)

// WithGracePeriod overrides DefaultCommandGracePeriod.
func WithGracePeriod(d time.Duration) CommandOption {
	return func(c *Command) {
		if d > 0 {
			c.grace = d
		}
	}
}

// WithCommandStreamOptions forwards options to the underlying Stream.
func WithCommandStreamOptions(opts ...StreamOption) CommandOption {
	return func(c *Command) {
		for _, opt := range opts {
			opt(c.stream)
		}
	}
}

// NewCommand prepares cmd to be used as a transport. cmd must not have been
// started and must not have Stdin or Stdout set. If cmd.Stderr is nil the
// child's diagnostics are forwarded to this process's stderr.
func NewCommand(cmd *exec.Cmd, opts ...CommandOption) (*Command, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	c := &Command{
		cmd:    cmd,
		stream: NewStream(stdout, stdin, WithCloser(stdin)),
		grace:  DefaultCommandGracePeriod,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect starts the subprocess.
func (c *Command) Connect(ctx context.Context) error {
	c.startOnce.Do(func() {
		if err := c.cmd.Start(); err != nil {
			c.startErr = fmt.Errorf("start %s: %w", c.cmd.Path, err)
			return
		}
		c.started = true
		c.startErr = c.stream.Connect(ctx)
	})
	return c.startErr
}

// ReadLine implements Transport.
func (c *Command) ReadLine(ctx context.Context) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}
	return c.stream.ReadLine(ctx)
}

// WriteLine implements Transport.
func (c *Command) WriteLine(ctx context.Context, line string) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.stream.WriteLine(ctx, line)
}

// Close closes the child's stdin and waits for it to exit, killing it if it
// outlives the grace period.
func (c *Command) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.stream.Close()

		// Prevent a concurrent Connect from starting the process after Close.
		c.startOnce.Do(func() { c.startErr = ErrClosed })
		if !c.started {
			return
		}

		grace := time.NewTimer(c.grace)
		defer grace.Stop()

		// Wait must not run until the reader has finished with stdout.
		killed := false
		select {
		case <-c.stream.eof:
		case <-grace.C:
			_ = c.cmd.Process.Kill()
			killed = true
			// A grandchild may still hold stdout; Wait closes it after this.
			select {
			case <-c.stream.eof:
			case <-time.After(c.grace):
			}
		}

		waitCh := make(chan error, 1)
		go func() { waitCh <- c.cmd.Wait() }()

		if killed {
			<-waitCh
			return
		}
		select {
		case err := <-waitCh:
			c.closeErr = errors.Join(c.closeErr, ignoreExit(err))
		case <-grace.C:
			_ = c.cmd.Process.Kill()
			<-waitCh
		}
	})
	return c.closeErr
}

// ignoreExit drops the error a child reports for exiting non-zero after its
// input closed; only failures to wait at all are returned.
func ignoreExit(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
