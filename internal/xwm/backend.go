package xwm

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/ItsNotGoodName/csdwin/internal/csd"
	"github.com/ItsNotGoodName/csdwin/internal/xcursor"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/ewmh"
	"github.com/jezek/xgbutil/xgraphics"
	"github.com/jezek/xgbutil/xprop"
	"github.com/jezek/xgbutil/xwindow"
)

var (
	ErrConnectionClosed = errors.New("X connection closed")
	ErrUnknownSurface   = errors.New("unknown surface")
)

type Options struct {
	// Display is an X display name. Empty uses DISPLAY.
	Display string
	// Margin is how far the content window is inset in its frame so
	// decorations can reach past the content edge.
	Margin int32
	Log    *slog.Logger
}

type surface struct {
	win     *xwindow.Window
	parent  xproto.Window
	created bool
	// Offset of the surface origin inside parent.
	offsetX int32
	offsetY int32

	pending csd.BufferID
	img     *xgraphics.Image
	imgSize csd.Size
	size    csd.Size
}

func (s *surface) destroyImage() {
	if s.img != nil {
		s.img.Destroy()
		s.img = nil
	}
}

type buffer struct {
	size csd.Size
	pix  []byte
}

// Backend is a csd.Display and csd.EventSource. Requests and NextEvent must
// be called from the same goroutine.
type Backend struct {
	log  *slog.Logger
	X    *xgbutil.XUtil
	opts Options

	state    State
	content  csd.SurfaceID
	mapped   bool
	surfaces map[csd.SurfaceID]*surface

	buffers    map[csd.BufferID]*buffer
	nextBuffer csd.BufferID

	cursors map[string]xproto.Cursor

	queue  []csd.Event
	eventC chan xgb.Event
	cancel context.CancelFunc
}

func Connect(opts Options) (*Backend, error) {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	X, err := xgbutil.NewConnDisplay(opts.Display)
	if err != nil {
		return nil, fmt.Errorf("connect X: %w", err)
	}

	b, err := newBackend(X, opts)
	if err != nil {
		X.Conn().Close()
		return nil, err
	}

	return b, nil
}

func newBackend(X *xgbutil.XUtil, opts Options) (*Backend, error) {
	protocols, err := xprop.Atm(X, "WM_PROTOCOLS")
	if err != nil {
		return nil, err
	}
	deleteWindow, err := xprop.Atm(X, "WM_DELETE_WINDOW")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		log:  opts.Log.With("backend", "x11"),
		X:    X,
		opts: opts,
		state: State{
			Margin:       opts.Margin,
			Protocols:    protocols,
			DeleteWindow: deleteWindow,
		},
		surfaces:   make(map[csd.SurfaceID]*surface),
		buffers:    make(map[csd.BufferID]*buffer),
		nextBuffer: 1,
		cursors:    make(map[string]xproto.Cursor),
		eventC:     make(chan xgb.Event),
		cancel:     cancel,
	}

	go ReceiveEvents(ctx, X.Conn(), b.eventC)

	return b, nil
}

func (b *Backend) NextEvent(ctx context.Context) (csd.Event, error) {
	for len(b.queue) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-b.eventC:
			if !ok {
				return nil, ErrConnectionClosed
			}
			b.queue = append(b.queue, b.state.Translate(ev)...)
		}
	}

	ev := b.queue[0]
	b.queue = b.queue[1:]
	return ev, nil
}

func (b *Backend) lookup(id csd.SurfaceID) (*surface, error) {
	s, ok := b.surfaces[id]
	if !ok {
		return nil, fmt.Errorf("surface %d: %w", id, ErrUnknownSurface)
	}
	return s, nil
}

// CreateSurface reserves a window id. The window is created once the surface
// gets a toplevel or subsurface role.
func (b *Backend) CreateSurface() (csd.SurfaceID, error) {
	win, err := xwindow.Generate(b.X)
	if err != nil {
		return 0, err
	}

	id := csd.SurfaceID(win.Id)
	b.surfaces[id] = &surface{win: win}
	return id, nil
}

func (b *Backend) CreateSubsurface(id, parentID csd.SurfaceID) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}
	parent, err := b.lookup(parentID)
	if err != nil {
		return err
	}
	if !parent.created {
		return fmt.Errorf("parent surface %d has no role", parentID)
	}

	// Siblings of the content window live in the frame, offset by the margin.
	s.parent, s.offsetX, s.offsetY = parent.win.Id, 0, 0
	if parentID == b.content {
		s.parent, s.offsetX, s.offsetY = parent.parent, parent.offsetX, parent.offsetY
	}

	if err := CreateChild(s.win, s.parent, int(s.offsetX), int(s.offsetY), 1, 1); err != nil {
		return fmt.Errorf("create subsurface window: %w", err)
	}
	s.created = true

	if s.parent != parent.win.Id {
		StackBelow(b.X, s.win.Id, parent.win.Id)
	}
	s.win.Map()
	return nil
}

func (b *Backend) SetSubsurfacePosition(id csd.SurfaceID, x, y int32) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}
	if s.created {
		s.win.Move(int(s.offsetX+x), int(s.offsetY+y))
	}
	return nil
}

func (b *Backend) Attach(id csd.SurfaceID, buffer csd.BufferID) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}
	s.pending = buffer
	return nil
}

// Damage is ignored since commits upload the whole buffer.
func (b *Backend) Damage(csd.SurfaceID, csd.Rect) error {
	return nil
}

// Commit uploads the pending buffer into the surface's background pixmap and
// releases the buffer straight away.
func (b *Backend) Commit(id csd.SurfaceID) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}

	if s.pending != 0 {
		if err := b.upload(s); err != nil {
			return err
		}
		b.queue = append(b.queue, csd.BufferReleaseEvent{Buffer: s.pending})
		s.pending = 0
	}

	if id == b.content && !b.mapped && s.created {
		if err := b.mapFrame(); err != nil {
			return err
		}
	}

	return nil
}

func (b *Backend) upload(s *surface) error {
	buf, ok := b.buffers[s.pending]
	if !ok {
		return fmt.Errorf("commit unknown buffer %d", s.pending)
	}

	if s.imgSize != buf.size {
		s.destroyImage()
		s.img = xgraphics.New(b.X, image.Rect(0, 0, int(buf.size.Width), int(buf.size.Height)))
		s.imgSize = buf.size
		if s.created {
			if err := s.img.XSurfaceSet(s.win.Id); err != nil {
				s.destroyImage()
				return fmt.Errorf("create pixmap: %w", err)
			}
		}
	}

	// Shm buffers are little endian ARGB, which is xgraphics' BGRA byte order.
	copy(s.img.Pix, buf.pix)

	if !s.created {
		return nil
	}

	if s.size != buf.size {
		s.size = buf.size
		s.win.Resize(int(buf.size.Width), int(buf.size.Height))
		if csd.SurfaceID(s.win.Id) == b.content && b.state.RequestSize(buf.size) {
			xwindow.New(b.X, b.state.Frame).Resize(
				int(buf.size.Width+2*b.opts.Margin), int(buf.size.Height+2*b.opts.Margin))
		}
	}

	s.img.XDraw()
	s.img.XPaint(s.win.Id)
	return nil
}

// mapFrame shows the toplevel and asks the client to pick its size, like an
// initial xdg configure.
func (b *Backend) mapFrame() error {
	if err := xproto.MapSubwindowsChecked(b.X.Conn(), b.state.Frame).Check(); err != nil {
		return err
	}
	if err := xproto.MapWindowChecked(b.X.Conn(), b.state.Frame).Check(); err != nil {
		return err
	}
	b.mapped = true
	b.queue = append(b.queue, csd.ConfigureEvent{Serial: b.state.NextSerial()})
	return nil
}

func (b *Backend) DestroySurface(id csd.SurfaceID) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}
	delete(b.surfaces, id)

	s.destroyImage()
	if s.created {
		return xproto.DestroyWindowChecked(b.X.Conn(), s.win.Id).Check()
	}
	return nil
}

func (b *Backend) AllocateBuffer(width, height int32) (csd.BufferID, []byte, error) {
	id := b.nextBuffer
	b.nextBuffer++

	pix := make([]byte, int(width)*int(height)*4)
	b.buffers[id] = &buffer{size: csd.Size{Width: width, Height: height}, pix: pix}
	return id, pix, nil
}

func (b *Backend) DestroyBuffer(id csd.BufferID) error {
	delete(b.buffers, id)
	return nil
}

// LoadCursor creates a cursor font glyph. X has no cursor surfaces, so the
// returned cursor's Surface is 0.
func (b *Backend) LoadCursor(name string) (csd.Cursor, error) {
	if _, ok := b.cursors[name]; !ok {
		glyph, err := xcursor.GlyphByName(name)
		if err != nil {
			return csd.Cursor{}, err
		}
		cursor, err := xcursor.CreateCursor(b.X, glyph)
		if err != nil {
			return csd.Cursor{}, err
		}
		b.cursors[name] = cursor
	}

	return csd.Cursor{Name: name, Width: 16, Height: 16}, nil
}

func (b *Backend) SetCursor(serial uint32, cursor *csd.Cursor) error {
	if b.state.Focus == 0 {
		return nil
	}

	var id xproto.Cursor
	if cursor != nil {
		id = b.cursors[cursor.Name]
	}
	return xproto.ChangeWindowAttributesChecked(b.X.Conn(), b.state.Focus, xproto.CwCursor, []uint32{uint32(id)}).Check()
}

func (b *Backend) CreateToplevel(id csd.SurfaceID, title, appID string) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}

	margin := int(b.opts.Margin)
	frame, err := CreateFrame(b.X, 1+2*margin, 1+2*margin)
	if err != nil {
		return fmt.Errorf("create frame: %w", err)
	}
	b.state.Frame = frame.Id

	if err := SetTitle(b.X, frame.Id, title, appID); err != nil {
		b.log.Warn("Failed to set title", "error", err)
	}
	if err := SetDeleteProtocol(b.X, frame.Id); err != nil {
		return err
	}

	if err := CreateChild(s.win, frame.Id, margin, margin, 1, 1); err != nil {
		return fmt.Errorf("create content window: %w", err)
	}
	s.parent, s.offsetX, s.offsetY, s.created = frame.Id, b.opts.Margin, b.opts.Margin, true
	b.content = id

	// A buffer committed before the role has no pixmap yet.
	if s.img != nil {
		if err := s.img.XSurfaceSet(s.win.Id); err != nil {
			return fmt.Errorf("create pixmap: %w", err)
		}
	}

	return nil
}

// SetWindowGeometry is implied by the frame layout on X.
func (b *Backend) SetWindowGeometry(csd.Rect) error {
	return nil
}

// AckConfigure has no X equivalent. The next commit resizes the frame.
func (b *Backend) AckConfigure(serial uint32) error {
	b.log.Debug("AckConfigure", "serial", serial)
	return nil
}

// BeginResize hands the pointer grab to the window manager.
func (b *Backend) BeginResize(serial uint32, edge csd.Edge) error {
	direction, ok := moveResizeDirection(edge)
	if !ok || b.state.Frame == 0 {
		return nil
	}

	pointer, err := xproto.QueryPointer(b.X.Conn(), b.X.RootWin()).Reply()
	if err != nil {
		return fmt.Errorf("query pointer: %w", err)
	}
	xproto.UngrabPointer(b.X.Conn(), xproto.TimeCurrentTime)

	// Source 1 is a normal application.
	return ewmh.WmMoveresizeExtra(b.X, b.state.Frame, direction,
		int(pointer.RootX), int(pointer.RootY), int(xproto.ButtonIndex1), 1)
}

func (b *Backend) DestroyToplevel() error {
	if b.state.Frame == 0 {
		return nil
	}

	// Children go with the frame.
	for id, s := range b.surfaces {
		if s.parent == b.state.Frame {
			s.created = false
			if id != b.content {
				delete(b.surfaces, id)
				s.destroyImage()
			}
		}
	}

	err := xproto.DestroyWindowChecked(b.X.Conn(), b.state.Frame).Check()
	b.state.Frame, b.content, b.mapped = 0, 0, false

	// The window manager may have destroyed the frame already.
	var werr xproto.WindowError
	if errors.As(err, &werr) {
		return nil
	}
	return err
}

// Flush is a no-op since xgb writes requests as they are made.
func (b *Backend) Flush() error {
	return nil
}

func (b *Backend) Close() error {
	b.cancel()
	for _, cursor := range b.cursors {
		xproto.FreeCursor(b.X.Conn(), cursor)
	}
	for _, s := range b.surfaces {
		s.destroyImage()
	}
	b.X.Conn().Close()
	return nil
}
