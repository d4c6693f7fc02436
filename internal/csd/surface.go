package csd

import (
	"errors"
	"fmt"
)

var ErrBufferInUse = errors.New("buffer attached to another surface")

// Surface owns one compositor-visible drawable. Attach and Damage are local
// until Commit.
type Surface struct {
	id   SurfaceID
	comp Compositor
	pool *BufferPool

	size      Size
	pending   *PixelBuffer
	attached  *PixelBuffer
	damage    Rect
	destroyed bool
}

func NewSurface(g *Globals) (*Surface, error) {
	id, err := g.Display.CreateSurface()
	if err != nil {
		return nil, fmt.Errorf("create surface: %w", err)
	}

	return &Surface{
		id:   id,
		comp: g.Display,
		pool: g.Pool,
	}, nil
}

func (s *Surface) ID() SurfaceID {
	return s.id
}

// Size is the size of the last committed buffer.
func (s *Surface) Size() Size {
	return s.size
}

// Attach replaces the pending buffer.
func (s *Surface) Attach(buf *PixelBuffer) error {
	if buf.owner != 0 && buf.owner != s.id {
		return fmt.Errorf("attach buffer %d to surface %d: %w", buf.ID, s.id, ErrBufferInUse)
	}
	if s.pending != nil && s.pending != buf {
		// Never committed, so the compositor never saw it.
		s.pool.Release(s.pending.ID)
	}
	buf.owner = s.id
	s.pending = buf
	return nil
}

func (s *Surface) Damage(r Rect) {
	s.damage = s.damage.Union(r)
}

// DamageAll damages the whole pending buffer, or the current size without one.
func (s *Surface) DamageAll() {
	size := s.size
	if s.pending != nil {
		size = s.pending.Size()
	}
	s.Damage(Rect{Width: size.Width, Height: size.Height})
}

func (s *Surface) Commit() error {
	if s.destroyed {
		return fmt.Errorf("commit surface %d: destroyed", s.id)
	}

	if s.pending != nil {
		if err := s.comp.Attach(s.id, s.pending.ID); err != nil {
			return err
		}
		s.attached, s.pending = s.pending, nil
		s.size = s.attached.Size()
	}
	if !s.damage.Empty() {
		if err := s.comp.Damage(s.id, s.damage); err != nil {
			return err
		}
	}
	if err := s.comp.Commit(s.id); err != nil {
		return err
	}
	s.damage = Rect{}
	return nil
}

// Destroy releases any buffer still held and destroys the surface.
func (s *Surface) Destroy() error {
	if s.destroyed {
		return nil
	}
	s.destroyed = true

	for _, buf := range []*PixelBuffer{s.pending, s.attached} {
		if buf != nil && buf.owner == s.id {
			s.pool.Release(buf.ID)
		}
	}
	s.pending, s.attached = nil, nil

	return s.comp.DestroySurface(s.id)
}
