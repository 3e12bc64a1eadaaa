package physics

import (
	"sync"
	"sync/atomic"

	"github.com/jakecoffman/cp"
)

// ShapeBuffers hands out scratch slices of shape pointers and counts them, so
// callers can check that every buffer taken was given back.
type ShapeBuffers struct {
	pool sync.Pool
	gets atomic.Int64
	puts atomic.Int64
}

func NewShapeBuffers() *ShapeBuffers {
	return &ShapeBuffers{}
}

// Get returns an empty buffer with room for at least n shapes.
func (p *ShapeBuffers) Get(n int) *[]*cp.Shape {
	p.gets.Add(1)
	if buf, ok := p.pool.Get().(*[]*cp.Shape); ok && cap(*buf) >= n {
		*buf = (*buf)[:0]
		return buf
	}
	s := make([]*cp.Shape, 0, max(n, 4))
	return &s
}

// Put releases a buffer. The pointers it held are cleared first.
func (p *ShapeBuffers) Put(buf *[]*cp.Shape) {
	if buf == nil {
		return
	}
	clear(*buf)
	*buf = (*buf)[:0]
	p.pool.Put(buf)
	p.puts.Add(1)
}

// Outstanding is the number of buffers taken and not yet released.
func (p *ShapeBuffers) Outstanding() int64 {
	return p.gets.Load() - p.puts.Load()
}

// Allocated is the total number of Get calls.
func (p *ShapeBuffers) Allocated() int64 {
	return p.gets.Load()
}
