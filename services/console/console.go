// Package console is the operator's text link. Log output is buffered in a
// byte ring so writers never block on a slow UART; command lines read from
// the same port are executed and answered one line each.
package console

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"signalcode-go/errcode"
	"signalcode-go/x/shmring"
)

const (
	DefaultRingSize = 4096
	MaxLine         = 128
)

// Console is an io.Writer that never blocks. Bytes that do not fit in the
// ring are dropped and counted.
type Console struct {
	mu    sync.Mutex // ring has a single producer
	ring  *shmring.Ring
	drops atomic.Uint32
}

// New returns a console with a ring of size bytes (a power of two).
func New(size int) *Console {
	if size == 0 {
		size = DefaultRingSize
	}
	return &Console{ring: shmring.New(size)}
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	n := c.ring.TryWriteFrom(p)
	c.mu.Unlock()
	if n < len(p) {
		c.drops.Add(uint32(len(p) - n))
	}
	return len(p), nil
}

// Drops is the number of bytes discarded because the ring was full.
func (c *Console) Drops() uint32 { return c.drops.Load() }

// Buffered is the number of bytes waiting for Pump.
func (c *Console) Buffered() int { return c.ring.Available() }

// Pump drains the ring into out until ctx ends or out fails.
func (c *Console) Pump(ctx context.Context, out io.Writer) error {
	buf := make([]byte, 256)
	for {
		for {
			n := c.ring.TryReadInto(buf)
			if n == 0 {
				break
			}
			if _, err := out.Write(buf[:n]); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.ring.Readable():
		}
	}
}

// Port is the receive side of a console link; uartx.UART satisfies it.
type Port interface {
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}

// Executor runs one command line and returns a one-line result.
type Executor interface {
	Exec(ctx context.Context, line string) (string, error)
}

type ExecutorFunc func(ctx context.Context, line string) (string, error)

func (f ExecutorFunc) Exec(ctx context.Context, line string) (string, error) { return f(ctx, line) }

// Serve reads LF-terminated lines from in, executes each and writes one
// reply line to out: "ok[ result]" or "err <code>: <message>". CR is
// ignored and lines longer than MaxLine are truncated.
func Serve(ctx context.Context, in Port, ex Executor, out io.Writer) error {
	buf := make([]byte, 64)
	line := make([]byte, 0, MaxLine)
	for {
		n, err := in.RecvSomeContext(ctx, buf)
		for i := 0; i < n; i++ {
			switch b := buf[i]; b {
			case '\n':
				if err := run(ctx, string(line), ex, out); err != nil {
					return err
				}
				line = line[:0]
			case '\r':
			default:
				if len(line) < MaxLine {
					line = append(line, b)
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

func run(ctx context.Context, line string, ex Executor, out io.Writer) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	res, err := ex.Exec(ctx, line)
	var reply string
	switch {
	case err != nil:
		reply = "err " + string(errcode.Of(err)) + ": " + err.Error() + "\n"
	case res == "":
		reply = "ok\n"
	default:
		reply = "ok " + res + "\n"
	}
	_, werr := io.WriteString(out, reply)
	return werr
}
