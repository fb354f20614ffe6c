package shmring

import "sync/atomic"

// Ring is a single-producer, single-consumer byte ring. Indices grow
// monotonically and wrap through the power-of-two mask.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index
	wr   atomic.Uint32 // producer index

	readable chan struct{} // empty -> non-empty edge
	writable chan struct{} // full -> non-full edge
}

// New allocates a ring; size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

func (r *Ring) Space() int     { return int(r.size() - (r.wr.Load() - r.rd.Load())) }
func (r *Ring) Available() int { return int(r.wr.Load() - r.rd.Load()) }

// TryWriteFrom copies as much of src as fits and returns the count.
func (r *Ring) TryWriteFrom(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	used := wr - rd
	n := int(r.size() - used)
	if n <= 0 {
		return 0
	}
	if len(src) < n {
		n = len(src)
	}
	idx := wr & r.mask
	first := copy(r.buf[idx:], src[:n])
	copy(r.buf, src[first:n])
	r.wr.Store(wr + uint32(n))

	if used == 0 {
		signal(r.readable)
	}
	return n
}

// TryReadInto copies up to len(dst) buffered bytes and returns the count.
func (r *Ring) TryReadInto(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	used := wr - rd
	n := int(used)
	if n == 0 {
		return 0
	}
	if len(dst) < n {
		n = len(dst)
	}
	idx := rd & r.mask
	end := idx + uint32(n)
	if end > r.size() {
		end = r.size()
	}
	first := copy(dst, r.buf[idx:end])
	copy(dst[first:n], r.buf)
	r.rd.Store(rd + uint32(n))

	if used == r.size() {
		signal(r.writable)
	}
	return n
}

func (r *Ring) Readable() <-chan struct{} { return r.readable }
func (r *Ring) Writable() <-chan struct{} { return r.writable }

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
