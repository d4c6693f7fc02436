package csd

import (
	"errors"
	"fmt"
	"log/slog"
)

type Orientation int

const (
	TopLeft Orientation = iota
	TopRight
	BottomLeft
	BottomRight
)

var Orientations = [4]Orientation{TopLeft, TopRight, BottomLeft, BottomRight}

func (o Orientation) String() string {
	switch o {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	default:
		return fmt.Sprintf("orientation(%d)", int(o))
	}
}

// Flags is 0 for a corner aligned to the top/left and 1 for bottom/right, per
// axis.
func (o Orientation) Flags() (fx, fy int32) {
	switch o {
	case TopRight:
		return 1, 0
	case BottomLeft:
		return 0, 1
	case BottomRight:
		return 1, 1
	default:
		return 0, 0
	}
}

func (o Orientation) CursorName() string {
	switch o {
	case TopRight:
		return "top_right_corner"
	case BottomLeft:
		return "bottom_left_corner"
	case BottomRight:
		return "bottom_right_corner"
	default:
		return "top_left_corner"
	}
}

func (o Orientation) Edge() Edge {
	switch o {
	case TopRight:
		return EdgeTopRight
	case BottomLeft:
		return EdgeBottomLeft
	case BottomRight:
		return EdgeBottomRight
	default:
		return EdgeTopLeft
	}
}

// CornerOffset centers a padding-sized square on the parent's corner.
func CornerOffset(o Orientation, parent Size, padding int32) Point {
	fx, fy := o.Flags()
	return Point{
		X: fx*parent.Width - padding/2,
		Y: fy*parent.Height - padding/2,
	}
}

// BorderElement is one decorative corner sub-surface.
type BorderElement struct {
	g           *Globals
	log         *slog.Logger
	orientation Orientation
	color       uint32

	surface  *Surface
	pointer  *PointerTracker
	padding  int32
	rendered int32
	pos      Point
}

func NewBorderElement(g *Globals, o Orientation, padding int32, color uint32, parent *Surface) (*BorderElement, error) {
	surface, err := NewSurface(g)
	if err != nil {
		return nil, err
	}

	b := &BorderElement{
		g:           g,
		log:         g.Log.With("corner", o.String()),
		orientation: o,
		color:       color,
		surface:     surface,
		padding:     padding,
	}

	if err := b.init(parent); err != nil {
		return nil, errors.Join(fmt.Errorf("%s corner: %w", o, err), surface.Destroy())
	}

	return b, nil
}

func (b *BorderElement) init(parent *Surface) error {
	if err := b.g.Display.CreateSubsurface(b.surface.ID(), parent.ID()); err != nil {
		return err
	}
	if err := b.g.Display.SetSubsurfacePosition(b.surface.ID(), 0, 0); err != nil {
		return err
	}

	pointer, err := NewPointerTracker(b.g, b.surface.ID(), b.orientation.CursorName())
	if err != nil {
		return err
	}
	b.pointer = pointer.OnClick(b.click)

	return b.render()
}

func (b *BorderElement) click(c Click) error {
	if c.Button != ButtonLeft {
		return nil
	}
	b.log.Debug("Resize grab", "x", c.X, "y", c.Y, "serial", c.Serial)
	return b.g.Display.BeginResize(c.Serial, b.orientation.Edge())
}

func (b *BorderElement) render() error {
	buf, err := b.g.Pool.Acquire(b.padding, b.padding)
	if err != nil {
		return err
	}
	buf.Fill(b.color)

	if err := b.surface.Attach(buf); err != nil {
		return err
	}
	b.surface.DamageAll()
	if err := b.surface.Commit(); err != nil {
		return err
	}

	b.rendered = b.padding
	return nil
}

func (b *BorderElement) Orientation() Orientation {
	return b.orientation
}

func (b *BorderElement) Position() Point {
	return b.pos
}

func (b *BorderElement) Padding() int32 {
	return b.padding
}

func (b *BorderElement) Surface() *Surface {
	return b.surface
}

func (b *BorderElement) Pointer() *PointerTracker {
	return b.pointer
}

// Reposition recomputes the offset from the current parent size and always
// sends it.
func (b *BorderElement) Reposition(parentWidth, parentHeight int32) error {
	b.pos = CornerOffset(b.orientation, Size{Width: parentWidth, Height: parentHeight}, b.padding)
	return b.g.Display.SetSubsurfacePosition(b.surface.ID(), b.pos.X, b.pos.Y)
}

// Resize re-renders only when padding changed since the last render.
func (b *BorderElement) Resize(padding int32) error {
	b.padding = padding
	if padding == b.rendered {
		return nil
	}
	return b.render()
}

func (b *BorderElement) HandlePointer(ev Event) error {
	return b.pointer.HandleEvent(ev)
}

func (b *BorderElement) Destroy() error {
	return b.surface.Destroy()
}
