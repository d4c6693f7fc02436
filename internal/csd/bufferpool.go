package csd

import (
	"errors"
	"fmt"
)

var ErrEmptyBuffer = errors.New("buffer size must be positive")

// PixelBuffer is XRGB8888 little-endian pixel memory of fixed dimensions.
type PixelBuffer struct {
	ID     BufferID
	Width  int32
	Height int32
	Pix    []byte

	owner SurfaceID
}

func (b *PixelBuffer) Size() Size {
	return Size{Width: b.Width, Height: b.Height}
}

func (b *PixelBuffer) Stride() int32 {
	return b.Width * 4
}

// Owner is the surface the buffer is attached to, or 0.
func (b *PixelBuffer) Owner() SurfaceID {
	return b.owner
}

func (b *PixelBuffer) Fill(xrgb uint32) {
	if len(b.Pix) < 4 {
		return
	}
	b.Pix[0], b.Pix[1], b.Pix[2], b.Pix[3] = byte(xrgb), byte(xrgb>>8), byte(xrgb>>16), byte(xrgb>>24)
	for n := 4; n < len(b.Pix); n *= 2 {
		copy(b.Pix[n:], b.Pix[:n])
	}
}

type PoolOption func(*BufferPool)

// WithoutReuse makes the pool allocate fresh memory on every Acquire.
func WithoutReuse() PoolOption {
	return func(p *BufferPool) {
		p.reuse = false
	}
}

// BufferPool tracks which buffers are held by a surface or the compositor and
// which are free for reuse.
type BufferPool struct {
	alloc Allocator
	reuse bool
	free  map[Size][]*PixelBuffer
	busy  map[BufferID]*PixelBuffer
}

func NewBufferPool(alloc Allocator, opts ...PoolOption) *BufferPool {
	p := &BufferPool{
		alloc: alloc,
		reuse: true,
		free:  make(map[Size][]*PixelBuffer),
		busy:  make(map[BufferID]*PixelBuffer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns a writable buffer of exactly width x height pixels.
func (p *BufferPool) Acquire(width, height int32) (*PixelBuffer, error) {
	size := Size{Width: width, Height: height}
	if size.Empty() {
		return nil, fmt.Errorf("acquire %dx%d: %w", width, height, ErrEmptyBuffer)
	}

	if free := p.free[size]; len(free) > 0 {
		buf := free[len(free)-1]
		p.free[size] = free[:len(free)-1]
		p.busy[buf.ID] = buf
		return buf, nil
	}

	id, pix, err := p.alloc.AllocateBuffer(width, height)
	if err != nil {
		return nil, fmt.Errorf("allocate %dx%d buffer: %w", width, height, err)
	}
	if want := int(width) * int(height) * 4; len(pix) != want {
		p.alloc.DestroyBuffer(id)
		return nil, fmt.Errorf("allocate %dx%d buffer: got %d bytes, want %d", width, height, len(pix), want)
	}

	buf := &PixelBuffer{
		ID:     id,
		Width:  width,
		Height: height,
		Pix:    pix,
	}
	p.busy[id] = buf
	return buf, nil
}

// Release hands a buffer back once the compositor stopped reading it.
// Unknown or already released buffers are ignored.
func (p *BufferPool) Release(id BufferID) {
	buf, ok := p.busy[id]
	if !ok {
		return
	}
	delete(p.busy, id)
	buf.owner = 0

	if !p.reuse {
		p.alloc.DestroyBuffer(id)
		return
	}
	p.free[buf.Size()] = append(p.free[buf.Size()], buf)
}

// Evict destroys every free buffer of the given size.
func (p *BufferPool) Evict(size Size) error {
	var errs []error
	for _, buf := range p.free[size] {
		errs = append(errs, p.alloc.DestroyBuffer(buf.ID))
	}
	delete(p.free, size)
	return errors.Join(errs...)
}

// Close destroys all buffers, free or busy.
func (p *BufferPool) Close() error {
	var errs []error
	for size := range p.free {
		errs = append(errs, p.Evict(size))
	}
	for id := range p.busy {
		errs = append(errs, p.alloc.DestroyBuffer(id))
		delete(p.busy, id)
	}
	return errors.Join(errs...)
}

type PoolStats struct {
	Free int `json:"free"`
	Busy int `json:"busy"`
}

func (p *BufferPool) Stats() PoolStats {
	stats := PoolStats{Busy: len(p.busy)}
	for _, free := range p.free {
		stats.Free += len(free)
	}
	return stats
}
