// Package wayland implements the csd display on a Wayland compositor using
// wl_compositor, wl_subcompositor, wl_shm, wl_seat and xdg_wm_base.
package wayland

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ItsNotGoodName/csdwin/internal/csd"
	"github.com/ItsNotGoodName/csdwin/internal/xcursor"
	"github.com/neurlang/wayland/wl"
	"github.com/neurlang/wayland/xdg"
)

var (
	ErrMissingGlobal  = errors.New("global not advertised")
	ErrNoToplevel     = errors.New("no toplevel")
	ErrUnknownSurface = errors.New("unknown surface")
	ErrClosed         = errors.New("wayland backend closed")
)

// ProtocolError is a fatal wl_display.error.
type ProtocolError struct {
	Object  uint32
	Code    uint32
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wayland: object %d: error %d: %s", e.Object, e.Code, e.Message)
}

const (
	ifaceCompositor    = "wl_compositor"
	ifaceSubcompositor = "wl_subcompositor"
	ifaceShm           = "wl_shm"
	ifaceSeat          = "wl_seat"
	ifaceWmBase        = "xdg_wm_base"

	versionCompositor    = 4
	versionSubcompositor = 1
	versionShm           = 1
	versionSeat          = 5
	versionWmBase        = 2

	// wl_surface.damage_buffer
	damageBufferSince = 4
)

const (
	seatCapabilityPointer = 1
	pointerButtonPressed  = 1

	// Requests sent with a null object argument.
	surfaceAttach    uint32 = 1
	pointerSetCursor uint32 = 0
)

type Options struct {
	// Display is a socket name in XDG_RUNTIME_DIR. Empty uses WAYLAND_DISPLAY.
	Display     string
	CursorTheme xcursor.Theme
	CursorSize  int
	Log         *slog.Logger
}

type global struct {
	name    uint32
	iface   string
	version uint32
}

// Backend is a csd.Display and csd.EventSource. Requests and NextEvent must
// be called from the same goroutine.
type Backend struct {
	log      *slog.Logger
	opts     Options
	display  *wl.Display
	ctx      *wl.Context
	listener *listener

	registry          *wl.Registry
	compositor        *wl.Compositor
	compositorVersion uint32
	subcompositor     *wl.Subcompositor
	shm               *wl.Shm
	seat              *wl.Seat
	wmBase            *xdg.WmBase

	// mu guards state written by handlers on the receive goroutine.
	mu      sync.Mutex
	globals map[uint32]global
	pointer *wl.Pointer

	surfaces    map[csd.SurfaceID]*wl.Surface
	subsurfaces map[csd.SurfaceID]*wl.Subsurface
	buffers     map[csd.BufferID]*shmBuffer

	surface    csd.SurfaceID
	xdgSurface *xdg.Surface
	toplevel   *xdg.Toplevel
	gate       commitGate

	cursors       map[string]csd.Cursor
	cursorBuffers []*shmBuffer

	queue  *eventQueue
	errC   chan error
	done   chan struct{}
	closed sync.Once
}

func newBackend(display *wl.Display, opts Options) *Backend {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.CursorSize <= 0 {
		opts.CursorSize = xcursor.SizeFromEnv()
	}
	if opts.CursorTheme.Name == "" {
		opts.CursorTheme = xcursor.ThemeFromEnv()
	}

	b := &Backend{
		log:         opts.Log.With("backend", "wayland"),
		opts:        opts,
		display:     display,
		ctx:         display.Context(),
		globals:     make(map[uint32]global),
		surfaces:    make(map[csd.SurfaceID]*wl.Surface),
		subsurfaces: make(map[csd.SurfaceID]*wl.Subsurface),
		buffers:     make(map[csd.BufferID]*shmBuffer),
		cursors:     make(map[string]csd.Cursor),
		queue:       newEventQueue(),
		errC:        make(chan error, 1),
		done:        make(chan struct{}),
	}
	b.listener = &listener{b: b}
	return b
}

// Connect dials the compositor and binds the globals a decorated window
// needs. A seat is optional.
func Connect(opts Options) (*Backend, error) {
	display, err := wl.Connect(opts.Display)
	if err != nil {
		return nil, fmt.Errorf("connect wayland: %w", err)
	}

	b := newBackend(display, opts)
	if err := b.init(); err != nil {
		return nil, errors.Join(err, b.ctx.Close())
	}

	go b.receive()

	return b, nil
}

func (b *Backend) init() error {
	b.display.AddErrorHandler(b.listener)

	registry, err := b.display.GetRegistry()
	if err != nil {
		return err
	}
	registry.AddGlobalHandler(b.listener)
	registry.AddGlobalRemoveHandler(b.listener)
	b.registry = registry

	if err := b.roundtrip(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	if b.compositor, b.compositorVersion, err = bind(b, ifaceCompositor, versionCompositor, wl.NewCompositor); err != nil {
		return err
	}
	if b.subcompositor, _, err = bind(b, ifaceSubcompositor, versionSubcompositor, wl.NewSubcompositor); err != nil {
		return err
	}
	if b.shm, _, err = bind(b, ifaceShm, versionShm, wl.NewShm); err != nil {
		return err
	}
	if b.wmBase, _, err = bind(b, ifaceWmBase, versionWmBase, xdg.NewWmBase); err != nil {
		return err
	}
	b.wmBase.AddPingHandler(b.listener)

	if b.seat, _, err = bind(b, ifaceSeat, versionSeat, wl.NewSeat); err != nil {
		b.log.Warn("No seat, pointer input disabled", "error", err)
		b.seat = nil
	} else {
		b.seat.AddCapabilitiesHandler(b.listener)
	}

	// Seat capabilities arrive after the bind.
	if err := b.roundtrip(); err != nil {
		return fmt.Errorf("bind: %w", err)
	}

	return nil
}

// bind creates a proxy for the first global named iface. The proxy is only
// created once the global is known so that no object id goes unused.
func bind[T wl.Proxy](b *Backend, iface string, version uint32, create func(*wl.Context) T) (T, uint32, error) {
	var zero T

	b.mu.Lock()
	var (
		g     global
		found bool
	)
	for _, candidate := range b.globals {
		if candidate.iface == iface {
			g, found = candidate, true
			break
		}
	}
	b.mu.Unlock()
	if !found {
		return zero, 0, fmt.Errorf("%s: %w", iface, ErrMissingGlobal)
	}

	proxy := create(b.ctx)
	v := min(g.version, version)
	if err := b.registry.Bind(g.name, iface, v, proxy); err != nil {
		return zero, 0, err
	}
	b.log.Debug("Bound global", "interface", iface, "version", v, "id", proxy.Id())

	return proxy, v, nil
}

// roundtrip dispatches on the calling goroutine until the server has handled
// every request sent so far. Only valid before receive starts.
func (b *Backend) roundtrip() error {
	callback, err := b.display.Sync()
	if err != nil {
		return err
	}
	done := make(syncDone)
	callback.AddDoneHandler(done)

	for {
		select {
		case <-done:
			return nil
		case err := <-b.errC:
			return err
		default:
		}

		if err := b.ctx.Run(); err != nil {
			return err
		}
	}
}

func (b *Backend) receive() {
	for {
		if err := b.ctx.Run(); err != nil {
			select {
			case <-b.done:
			default:
				b.fail(fmt.Errorf("read: %w", err))
			}
			return
		}
	}
}

// fail reports the first fatal error to NextEvent.
func (b *Backend) fail(err error) {
	select {
	case b.errC <- err:
	default:
	}
}

// NextEvent waits until a handler has queued an event.
func (b *Backend) NextEvent(ctx context.Context) (csd.Event, error) {
	for {
		if ev, ok := b.queue.pop(); ok {
			if _, ok := ev.(csd.ConfigureEvent); ok {
				b.gate.configure()
			}
			return ev, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-b.errC:
			return nil, err
		case <-b.done:
			return nil, ErrClosed
		case <-b.queue.notify:
		}
	}
}

func (b *Backend) capabilities(caps uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	has := caps&seatCapabilityPointer != 0
	switch {
	case has && b.pointer == nil:
		pointer, err := b.seat.GetPointer()
		if err != nil {
			return err
		}
		pointer.AddEnterHandler(b.listener)
		pointer.AddLeaveHandler(b.listener)
		pointer.AddMotionHandler(b.listener)
		pointer.AddButtonHandler(b.listener)
		b.pointer = pointer
	case !has && b.pointer != nil:
		b.log.Debug("Pointer capability removed")
		b.pointer = nil
	}
	return nil
}

func (b *Backend) lookup(id csd.SurfaceID) (*wl.Surface, error) {
	s, ok := b.surfaces[id]
	if !ok {
		return nil, fmt.Errorf("surface %d: %w", id, ErrUnknownSurface)
	}
	return s, nil
}

func (b *Backend) CreateSurface() (csd.SurfaceID, error) {
	s, err := b.compositor.CreateSurface()
	if err != nil {
		return 0, err
	}
	id := surfaceID(s)
	b.surfaces[id] = s
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

	sub, err := b.subcompositor.GetSubsurface(s, parent)
	if err != nil {
		return err
	}
	b.subsurfaces[id] = sub
	return sub.PlaceBelow(parent)
}

func (b *Backend) SetSubsurfacePosition(id csd.SurfaceID, x, y int32) error {
	sub, ok := b.subsurfaces[id]
	if !ok {
		return fmt.Errorf("surface %d is not a subsurface", id)
	}
	return sub.SetPosition(x, y)
}

func (b *Backend) Attach(id csd.SurfaceID, buffer csd.BufferID) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}
	if buffer == 0 {
		return b.ctx.SendRequest(s, surfaceAttach, uint32(0), int32(0), int32(0))
	}
	buf, ok := b.buffers[buffer]
	if !ok {
		return fmt.Errorf("attach unknown buffer %d", buffer)
	}
	return s.Attach(buf.buffer, 0, 0)
}

func (b *Backend) Damage(id csd.SurfaceID, r csd.Rect) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}
	if b.compositorVersion >= damageBufferSince {
		return s.DamageBuffer(r.X, r.Y, r.Width, r.Height)
	}
	return s.Damage(r.X, r.Y, r.Width, r.Height)
}

func (b *Backend) Commit(id csd.SurfaceID) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}
	if id == b.surface && !b.gate.commit() {
		return nil
	}
	return s.Commit()
}

func (b *Backend) DestroySurface(id csd.SurfaceID) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}

	var errs []error
	if sub, ok := b.subsurfaces[id]; ok {
		errs = append(errs, sub.Destroy())
		delete(b.subsurfaces, id)
	}
	errs = append(errs, s.Destroy())
	delete(b.surfaces, id)
	return errors.Join(errs...)
}

func (b *Backend) AllocateBuffer(width, height int32) (csd.BufferID, []byte, error) {
	buf, err := b.createShmBuffer(width, height, shmFormatXRGB8888)
	if err != nil {
		return 0, nil, err
	}
	buf.queue = b.queue
	buf.buffer.AddReleaseHandler(buf)

	b.buffers[buf.id()] = buf
	return buf.id(), buf.data, nil
}

func (b *Backend) DestroyBuffer(id csd.BufferID) error {
	buf, ok := b.buffers[id]
	if !ok {
		return nil
	}
	delete(b.buffers, id)
	return b.destroyShmBuffer(buf)
}

// LoadCursor loads a themed cursor onto its own surface. Cursors are cached
// by name.
func (b *Backend) LoadCursor(name string) (csd.Cursor, error) {
	if cursor, ok := b.cursors[name]; ok {
		return cursor, nil
	}

	img, err := b.opts.CursorTheme.Load(name, b.opts.CursorSize)
	if err != nil {
		return csd.Cursor{}, err
	}

	buf, err := b.createShmBuffer(int32(img.Width), int32(img.Height), shmFormatARGB8888)
	if err != nil {
		return csd.Cursor{}, err
	}
	copy(buf.data, img.Pix)
	b.cursorBuffers = append(b.cursorBuffers, buf)

	id, err := b.CreateSurface()
	if err != nil {
		return csd.Cursor{}, err
	}
	s := b.surfaces[id]
	if err := errors.Join(
		s.Attach(buf.buffer, 0, 0),
		b.Damage(id, csd.Rect{Width: buf.width, Height: buf.height}),
		s.Commit(),
	); err != nil {
		return csd.Cursor{}, err
	}

	cursor := csd.Cursor{
		Name:     name,
		Surface:  id,
		Width:    buf.width,
		Height:   buf.height,
		HotspotX: int32(img.XHot),
		HotspotY: int32(img.YHot),
	}
	b.cursors[name] = cursor
	b.log.Debug("Loaded cursor", "name", name, "size", img.Size)

	return cursor, nil
}

func (b *Backend) SetCursor(serial uint32, cursor *csd.Cursor) error {
	b.mu.Lock()
	pointer := b.pointer
	b.mu.Unlock()

	if pointer == nil {
		return nil
	}
	if cursor == nil {
		return b.ctx.SendRequest(pointer, pointerSetCursor, serial, uint32(0), int32(0), int32(0))
	}

	s, err := b.lookup(cursor.Surface)
	if err != nil {
		return err
	}
	return pointer.SetCursor(serial, s, cursor.HotspotX, cursor.HotspotY)
}

func (b *Backend) CreateToplevel(id csd.SurfaceID, title, appID string) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}

	xdgSurface, err := b.wmBase.GetSurface(s)
	if err != nil {
		return err
	}
	xdgSurface.AddConfigureHandler(b.listener)

	toplevel, err := xdgSurface.GetToplevel()
	if err != nil {
		return errors.Join(err, xdgSurface.Destroy())
	}
	toplevel.AddConfigureHandler(b.listener)
	toplevel.AddCloseHandler(b.listener)

	b.surface, b.xdgSurface, b.toplevel = id, xdgSurface, toplevel

	return errors.Join(
		toplevel.SetTitle(title),
		toplevel.SetAppId(appID),
	)
}

func (b *Backend) SetWindowGeometry(r csd.Rect) error {
	if b.xdgSurface == nil {
		return ErrNoToplevel
	}
	return b.xdgSurface.SetWindowGeometry(r.X, r.Y, r.Width, r.Height)
}

// AckConfigure acks serial and then sends any commit held back for it.
func (b *Backend) AckConfigure(serial uint32) error {
	if b.xdgSurface == nil {
		return ErrNoToplevel
	}
	if err := b.xdgSurface.AckConfigure(serial); err != nil {
		return err
	}

	if b.gate.ack() {
		s, err := b.lookup(b.surface)
		if err != nil {
			return err
		}
		return s.Commit()
	}
	return nil
}

func (b *Backend) BeginResize(serial uint32, edge csd.Edge) error {
	if b.toplevel == nil {
		return ErrNoToplevel
	}
	if b.seat == nil {
		return nil
	}
	return b.toplevel.Resize(b.seat, serial, uint32(edge))
}

func (b *Backend) DestroyToplevel() error {
	if b.toplevel == nil {
		return nil
	}
	err := errors.Join(
		b.toplevel.Destroy(),
		b.xdgSurface.Destroy(),
	)
	b.toplevel, b.xdgSurface, b.surface = nil, nil, 0
	b.gate.reset()
	return err
}

// Flush is a no-op since requests are written as they are made.
func (b *Backend) Flush() error {
	return nil
}

// Close releases cursors and disconnects. It is safe to call more than once.
func (b *Backend) Close() error {
	var err error
	b.closed.Do(func() {
		close(b.done)

		var errs []error
		for _, cursor := range b.cursors {
			if s, ok := b.surfaces[cursor.Surface]; ok {
				errs = append(errs, s.Destroy())
			}
		}
		for _, buf := range b.cursorBuffers {
			errs = append(errs, b.destroyShmBuffer(buf))
		}
		for _, buf := range b.buffers {
			errs = append(errs, b.destroyShmBuffer(buf))
		}
		if b.wmBase != nil {
			errs = append(errs, b.wmBase.Destroy())
		}
		errs = append(errs, b.ctx.Close())
		err = errors.Join(errs...)
	})
	return err
}
