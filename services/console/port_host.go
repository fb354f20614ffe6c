//go:build !rp2040 && !rp2350

package console

import (
	"context"
	"io"
)

// ReaderPort adapts a blocking io.Reader (stdin, a pipe) to Port. A single
// goroutine reads ahead; RecvSomeContext hands over one chunk per call.
type ReaderPort struct {
	chunks chan []byte
	err    error // set before chunks closes
	rest   []byte
}

func NewReaderPort(r io.Reader) *ReaderPort {
	p := &ReaderPort{chunks: make(chan []byte, 4)}
	go func() {
		defer close(p.chunks)
		for {
			buf := make([]byte, 256)
			n, err := r.Read(buf)
			if n > 0 {
				p.chunks <- buf[:n]
			}
			if err != nil {
				p.err = err
				return
			}
		}
	}()
	return p
}

func (p *ReaderPort) RecvSomeContext(ctx context.Context, dst []byte) (int, error) {
	if len(p.rest) == 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case c, ok := <-p.chunks:
			if !ok {
				return 0, p.err
			}
			p.rest = c
		}
	}
	n := copy(dst, p.rest)
	p.rest = p.rest[n:]
	return n, nil
}
