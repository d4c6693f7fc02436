package csd

import "context"

type (
	SurfaceID uint32
	BufferID  uint32
)

type Size struct {
	Width  int32
	Height int32
}

func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

type Point struct {
	X int32
	Y int32
}

type Rect struct {
	X      int32
	Y      int32
	Width  int32
	Height int32
}

func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Union returns the bounding box of r and o. Empty rectangles are ignored.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x0, y0 := min(r.X, o.X), min(r.Y, o.Y)
	x1, y1 := max(r.X+r.Width, o.X+o.Width), max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Compositor creates drawable surfaces and stacks them.
type Compositor interface {
	CreateSurface() (SurfaceID, error)
	// CreateSubsurface makes surface a child of parent, stacked below it.
	CreateSubsurface(surface, parent SurfaceID) error
	SetSubsurfacePosition(surface SurfaceID, x, y int32) error
	// Attach sets the pending buffer of surface. A zero buffer detaches.
	Attach(surface SurfaceID, buffer BufferID) error
	Damage(surface SurfaceID, r Rect) error
	Commit(surface SurfaceID) error
	DestroySurface(surface SurfaceID) error
}

// Allocator hands out XRGB8888 buffers. The returned slice is exactly
// width*height*4 bytes. Releases are delivered as BufferReleaseEvent.
type Allocator interface {
	AllocateBuffer(width, height int32) (BufferID, []byte, error)
	DestroyBuffer(buffer BufferID) error
}

type Cursor struct {
	Name     string
	Surface  SurfaceID
	Width    int32
	Height   int32
	HotspotX int32
	HotspotY int32
}

type CursorSource interface {
	LoadCursor(name string) (Cursor, error)
	// SetCursor shows cursor for the pointer focus. A nil cursor hides it.
	SetCursor(serial uint32, cursor *Cursor) error
}

// Edge is the window edge an interactive resize grabs.
type Edge uint32

const (
	EdgeNone        Edge = 0
	EdgeTop         Edge = 1
	EdgeBottom      Edge = 2
	EdgeLeft        Edge = 4
	EdgeTopLeft     Edge = 5
	EdgeBottomLeft  Edge = 6
	EdgeRight       Edge = 8
	EdgeTopRight    Edge = 9
	EdgeBottomRight Edge = 10
)

type Shell interface {
	CreateToplevel(surface SurfaceID, title, appID string) error
	SetWindowGeometry(r Rect) error
	AckConfigure(serial uint32) error
	BeginResize(serial uint32, edge Edge) error
	DestroyToplevel() error
}

// Display is the capability set a window is built on.
type Display interface {
	Compositor
	Allocator
	CursorSource
	Shell
	Flush() error
}

// EventSource blocks until the next event is available.
type EventSource interface {
	NextEvent(ctx context.Context) (Event, error)
}
