package csd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

var errFake = errors.New("fake failure")

// fakeDisplay records every request it receives as a short string.
type fakeDisplay struct {
	calls []string

	nextSurface SurfaceID
	nextBuffer  BufferID
	surfaces    map[SurfaceID]bool
	buffers     map[BufferID]Size
	positions   map[SurfaceID]Point
	parents     map[SurfaceID]SurfaceID
	attached    map[SurfaceID]BufferID
	cursor      *Cursor

	failAlloc   bool
	failCursors map[string]bool
	failFlush   bool
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{
		nextSurface: 100,
		nextBuffer:  1,
		surfaces:    make(map[SurfaceID]bool),
		buffers:     make(map[BufferID]Size),
		positions:   make(map[SurfaceID]Point),
		parents:     make(map[SurfaceID]SurfaceID),
		attached:    make(map[SurfaceID]BufferID),
		failCursors: make(map[string]bool),
	}
}

func newTestGlobals(d *fakeDisplay, opts ...PoolOption) *Globals {
	g := NewGlobals(d, opts...)
	g.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	return g
}

func (d *fakeDisplay) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

// callsWithPrefix returns recorded calls starting with prefix, in order.
func (d *fakeDisplay) callsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range d.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (d *fakeDisplay) indexOf(call string) int {
	for i, c := range d.calls {
		if c == call {
			return i
		}
	}
	return -1
}

func (d *fakeDisplay) CreateSurface() (SurfaceID, error) {
	id := d.nextSurface
	d.nextSurface++
	d.surfaces[id] = true
	d.record("create-surface %d", id)
	return id, nil
}

func (d *fakeDisplay) CreateSubsurface(surface, parent SurfaceID) error {
	d.parents[surface] = parent
	d.record("subsurface %d %d", surface, parent)
	return nil
}

func (d *fakeDisplay) SetSubsurfacePosition(surface SurfaceID, x, y int32) error {
	d.positions[surface] = Point{X: x, Y: y}
	d.record("position %d %d %d", surface, x, y)
	return nil
}

func (d *fakeDisplay) Attach(surface SurfaceID, buffer BufferID) error {
	d.attached[surface] = buffer
	d.record("attach %d %d", surface, buffer)
	return nil
}

func (d *fakeDisplay) Damage(surface SurfaceID, r Rect) error {
	d.record("damage %d %d %d %d %d", surface, r.X, r.Y, r.Width, r.Height)
	return nil
}

func (d *fakeDisplay) Commit(surface SurfaceID) error {
	d.record("commit %d", surface)
	return nil
}

func (d *fakeDisplay) DestroySurface(surface SurfaceID) error {
	delete(d.surfaces, surface)
	d.record("destroy-surface %d", surface)
	return nil
}

func (d *fakeDisplay) AllocateBuffer(width, height int32) (BufferID, []byte, error) {
	if d.failAlloc {
		return 0, nil, errFake
	}
	id := d.nextBuffer
	d.nextBuffer++
	d.buffers[id] = Size{Width: width, Height: height}
	d.record("allocate %d %dx%d", id, width, height)
	return id, make([]byte, int(width)*int(height)*4), nil
}

func (d *fakeDisplay) DestroyBuffer(buffer BufferID) error {
	delete(d.buffers, buffer)
	d.record("destroy-buffer %d", buffer)
	return nil
}

func (d *fakeDisplay) LoadCursor(name string) (Cursor, error) {
	if d.failCursors[name] {
		return Cursor{}, fmt.Errorf("%s: %w", name, errFake)
	}
	return Cursor{Name: name, Width: 24, Height: 24}, nil
}

func (d *fakeDisplay) SetCursor(serial uint32, cursor *Cursor) error {
	d.cursor = cursor
	if cursor == nil {
		d.record("set-cursor %d none", serial)
	} else {
		d.record("set-cursor %d %s", serial, cursor.Name)
	}
	return nil
}

func (d *fakeDisplay) CreateToplevel(surface SurfaceID, title, appID string) error {
	d.record("toplevel %d", surface)
	return nil
}

func (d *fakeDisplay) SetWindowGeometry(r Rect) error {
	d.record("geometry %d %d", r.Width, r.Height)
	return nil
}

func (d *fakeDisplay) AckConfigure(serial uint32) error {
	d.record("ack %d", serial)
	return nil
}

func (d *fakeDisplay) BeginResize(serial uint32, edge Edge) error {
	d.record("resize %d %d", serial, edge)
	return nil
}

func (d *fakeDisplay) DestroyToplevel() error {
	d.record("destroy-toplevel")
	return nil
}

func (d *fakeDisplay) Flush() error {
	if d.failFlush {
		return errFake
	}
	return nil
}

// fakeSource replays a fixed list of events, then reports io.EOF.
type fakeSource struct {
	events []Event
}

func (s *fakeSource) NextEvent(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.events) == 0 {
		return nil, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func TestRectUnion(t *testing.T) {
	tests := []struct {
		a, b, want Rect
	}{
		{Rect{}, Rect{X: 1, Y: 2, Width: 3, Height: 4}, Rect{X: 1, Y: 2, Width: 3, Height: 4}},
		{Rect{X: 0, Y: 0, Width: 10, Height: 10}, Rect{}, Rect{X: 0, Y: 0, Width: 10, Height: 10}},
		{Rect{X: 0, Y: 0, Width: 10, Height: 10}, Rect{X: 5, Y: -5, Width: 10, Height: 10}, Rect{X: 0, Y: -5, Width: 15, Height: 15}},
	}
	for _, tt := range tests {
		if got := tt.a.Union(tt.b); got != tt.want {
			t.Fatalf("%+v.Union(%+v) = %+v, want %+v", tt.a, tt.b, got, tt.want)
		}
	}
}
