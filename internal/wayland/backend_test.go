package wayland

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ItsNotGoodName/csdwin/internal/csd"
	"github.com/ItsNotGoodName/csdwin/internal/xcursor"
	"github.com/neurlang/wayland/wl"
)

var order = binary.NativeEndian

const displayID = 1

// Opcodes the fake compositor reads or sends.
const (
	displaySync        = 0
	displayGetRegistry = 1
	displayError       = 0
	registryBind       = 0
	registryGlobal     = 0
	callbackDone       = 0

	surfaceCommit = 6

	seatGetPointer   = 0
	seatCapabilities = 0
	pointerEnter     = 0
	pointerButton    = 3
	bufferRelease    = 0
	shmCreatePool    = 0

	wmBasePing             = 0
	wmBasePong             = 3
	xdgSurfaceAckConfigure = 4
	xdgSurfaceConfigure    = 0
	toplevelSetAppID       = 3
	toplevelResize         = 6
	toplevelConfigureEvent = 0
	toplevelCloseEvent     = 1
)

type fixed float64

type message struct {
	sender uint32
	opcode uint16
	body   []byte
}

func (m *message) uint32() uint32 {
	v := order.Uint32(m.body)
	m.body = m.body[4:]
	return v
}

func (m *message) text() string {
	n := int(m.uint32())
	s := string(m.body[:n-1])
	m.body = m.body[(n+3)&^3:]
	return s
}

func (m *message) String() string {
	return fmt.Sprintf("%d.%d", m.sender, m.opcode)
}

func readMessage(r io.Reader) (*message, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	word := order.Uint32(header[4:])
	body := make([]byte, int(word>>16)-8)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return &message{sender: order.Uint32(header[:]), opcode: uint16(word), body: body}, nil
}

func encode(sender uint32, opcode uint16, args ...any) []byte {
	var body []byte
	for _, arg := range args {
		switch arg := arg.(type) {
		case uint32:
			body = order.AppendUint32(body, arg)
		case int32:
			body = order.AppendUint32(body, uint32(arg))
		case fixed:
			body = order.AppendUint32(body, uint32(int32(arg*256)))
		case string:
			body = order.AppendUint32(body, uint32(len(arg)+1))
			body = append(body, arg...)
			body = append(body, make([]byte, 4-len(arg)%4)...)
		case []uint32:
			body = order.AppendUint32(body, uint32(len(arg)*4))
			for _, v := range arg {
				body = order.AppendUint32(body, v)
			}
		default:
			panic(fmt.Sprintf("encode %T", arg))
		}
	}

	msg := order.AppendUint32(nil, sender)
	msg = order.AppendUint32(msg, uint32(len(body)+8)<<16|uint32(opcode))
	return append(msg, body...)
}

// fakeCompositor is the server end of the display socket. Tests drive it by
// hand.
type fakeCompositor struct {
	t    *testing.T
	conn net.Conn
}

func (s *fakeCompositor) send(id uint32, opcode uint16, args ...any) {
	s.t.Helper()
	if _, err := s.conn.Write(encode(id, opcode, args...)); err != nil {
		s.t.Fatal(err)
	}
}

func (s *fakeCompositor) read() *message {
	s.t.Helper()
	s.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msg, err := readMessage(s.conn)
	if err != nil {
		s.t.Fatal(err)
	}
	return msg
}

// readUntil skips requests until id.opcode arrives.
func (s *fakeCompositor) readUntil(id uint32, opcode uint16) *message {
	s.t.Helper()
	for {
		if msg := s.read(); msg.sender == id && msg.opcode == opcode {
			return msg
		}
	}
}

// handshake answers the registry and bind roundtrips of Backend.init.
func (s *fakeCompositor) handshake() error {
	next := func() (*message, error) { return readMessage(s.conn) }
	write := func(b []byte) error {
		_, err := s.conn.Write(b)
		return err
	}

	msg, err := next()
	if err != nil {
		return err
	}
	if msg.sender != displayID || msg.opcode != displayGetRegistry {
		return fmt.Errorf("request %v, want get_registry", msg)
	}
	registry := msg.uint32()

	msg, err = next()
	if err != nil {
		return err
	}
	callback := msg.uint32()

	globals := []struct {
		iface   string
		version uint32
	}{
		{ifaceCompositor, 5},
		{ifaceSubcompositor, 1},
		{ifaceShm, 1},
		{ifaceWmBase, 3},
		{ifaceSeat, 7},
	}
	for i, g := range globals {
		if err := write(encode(registry, registryGlobal, uint32(i+1), g.iface, g.version)); err != nil {
			return err
		}
	}
	if err := write(encode(callback, callbackDone, uint32(0))); err != nil {
		return err
	}

	var seat uint32
	for {
		msg, err := next()
		if err != nil {
			return err
		}
		switch {
		case msg.sender == registry && msg.opcode == registryBind:
			msg.uint32()
			iface := msg.text()
			msg.uint32()
			if id := msg.uint32(); iface == ifaceSeat {
				seat = id
			}
		case msg.sender == displayID && msg.opcode == displaySync:
			callback := msg.uint32()
			if err := write(encode(seat, seatCapabilities, uint32(seatCapabilityPointer))); err != nil {
				return err
			}
			return write(encode(callback, callbackDone, uint32(0)))
		}
	}
}

func writeCursorTheme(t *testing.T, names ...string) xcursor.Theme {
	t.Helper()

	le := binary.LittleEndian
	var file bytes.Buffer
	file.WriteString("Xcur")
	binary.Write(&file, le, []uint32{16, 0x10000, 1, 0xfffd0002, 24, 28})
	binary.Write(&file, le, []uint32{36, 0xfffd0002, 24, 1, 24, 24, 3, 4, 0})
	file.Write(make([]byte, 24*24*4))

	root := t.TempDir()
	dir := filepath.Join(root, "test", "cursors")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), file.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	return xcursor.Theme{Name: "test", Paths: []string{root}}
}

func newTestBackend(t *testing.T) (*Backend, *fakeCompositor) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	ln, err := net.Listen("unix", filepath.Join(dir, "wayland-test"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	acceptC := make(chan net.Conn, 1)
	go func() {
		if conn, err := ln.Accept(); err == nil {
			acceptC <- conn
		}
	}()

	display, err := wl.Connect("wayland-test")
	if err != nil {
		t.Fatal(err)
	}

	var compositor *fakeCompositor
	select {
	case conn := <-acceptC:
		compositor = &fakeCompositor{t: t, conn: conn}
		t.Cleanup(func() { conn.Close() })
	case <-time.After(5 * time.Second):
		t.Fatal("compositor did not accept")
	}

	b := newBackend(display, Options{
		CursorTheme: writeCursorTheme(t, "left_ptr"),
		CursorSize:  24,
		Log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	errC := make(chan error, 1)
	go func() { errC <- compositor.handshake() }()

	if err := b.init(); err != nil {
		t.Fatal(err)
	}
	if err := <-errC; err != nil {
		t.Fatal(err)
	}
	go b.receive()
	t.Cleanup(func() { b.Close() })

	compositor.readUntil(uint32(b.seat.Id()), seatGetPointer)

	return b, compositor
}

func nextEvent(t *testing.T, b *Backend) csd.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev, err := b.NextEvent(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func newTestToplevel(t *testing.T, b *Backend, compositor *fakeCompositor) csd.SurfaceID {
	t.Helper()

	surface, err := b.CreateSurface()
	if err != nil {
		t.Fatal(err)
	}
	if err := b.CreateToplevel(surface, "title", "app"); err != nil {
		t.Fatal(err)
	}
	compositor.readUntil(uint32(b.toplevel.Id()), toplevelSetAppID)
	return surface
}

func TestBackendBindsClampedVersions(t *testing.T) {
	b, _ := newTestBackend(t)

	if b.compositor == nil || b.subcompositor == nil || b.shm == nil || b.wmBase == nil || b.seat == nil {
		t.Fatalf("missing globals")
	}
	if b.compositorVersion != versionCompositor {
		t.Fatalf("compositor version = %d", b.compositorVersion)
	}
	if b.pointer == nil {
		t.Fatalf("pointer not created from seat capabilities")
	}
}

func TestBackendConfigureAndHeldCommit(t *testing.T) {
	b, compositor := newTestBackend(t)
	surface := newTestToplevel(t, b, compositor)

	compositor.send(uint32(b.toplevel.Id()), toplevelConfigureEvent, int32(400), int32(300), []uint32{uint32(csd.StateActivated)})
	compositor.send(uint32(b.xdgSurface.Id()), xdgSurfaceConfigure, uint32(7))

	ev, ok := nextEvent(t, b).(csd.ConfigureEvent)
	if !ok {
		t.Fatalf("expected ConfigureEvent")
	}
	if ev.Width != 400 || ev.Height != 300 || ev.Serial != 7 || len(ev.States) != 1 || ev.States[0] != csd.StateActivated {
		t.Fatalf("configure = %+v", ev)
	}

	if err := b.Commit(surface); err != nil {
		t.Fatal(err)
	}
	if err := b.AckConfigure(7); err != nil {
		t.Fatal(err)
	}

	first, second := compositor.read(), compositor.read()
	if first.sender != uint32(b.xdgSurface.Id()) || first.opcode != xdgSurfaceAckConfigure || first.uint32() != 7 {
		t.Fatalf("first request = %v, want ack_configure", first)
	}
	if second.sender != uint32(surface) || second.opcode != surfaceCommit {
		t.Fatalf("second request = %v, want commit", second)
	}

	// Without a pending configure commits go straight out.
	b.Commit(surface)
	if msg := compositor.read(); msg.sender != uint32(surface) || msg.opcode != surfaceCommit {
		t.Fatalf("request = %v, want commit", msg)
	}
}

func TestBackendPingPong(t *testing.T) {
	b, compositor := newTestBackend(t)
	newTestToplevel(t, b, compositor)

	compositor.send(uint32(b.wmBase.Id()), wmBasePing, uint32(42))
	compositor.send(uint32(b.toplevel.Id()), toplevelCloseEvent)

	if _, ok := nextEvent(t, b).(csd.CloseEvent); !ok {
		t.Fatalf("expected CloseEvent")
	}
	msg := compositor.readUntil(uint32(b.wmBase.Id()), wmBasePong)
	if serial := msg.uint32(); serial != 42 {
		t.Fatalf("pong serial = %d", serial)
	}
}

func TestBackendPointerEvents(t *testing.T) {
	b, compositor := newTestBackend(t)
	surface, err := b.CreateSurface()
	if err != nil {
		t.Fatal(err)
	}

	pointer := uint32(b.pointer.Id())
	compositor.send(pointer, pointerEnter, uint32(3), uint32(surface), fixed(10.5), fixed(2))
	compositor.send(pointer, pointerButton, uint32(4), uint32(100), csd.ButtonLeft, uint32(pointerButtonPressed))

	enter, ok := nextEvent(t, b).(csd.PointerEnterEvent)
	if !ok || enter.Serial != 3 || enter.Surface != surface || enter.X != 10.5 || enter.Y != 2 {
		t.Fatalf("enter = %+v", enter)
	}
	button, ok := nextEvent(t, b).(csd.PointerButtonEvent)
	if !ok || button.Serial != 4 || button.Button != csd.ButtonLeft || !button.Pressed {
		t.Fatalf("button = %+v", button)
	}
}

func TestBackendBufferRelease(t *testing.T) {
	b, compositor := newTestBackend(t)

	id, pix, err := b.AllocateBuffer(4, 2)
	if err != nil {
		t.Skipf("allocate: %v", err)
	}
	if len(pix) != 4*2*4 {
		t.Fatalf("buffer length = %d", len(pix))
	}
	compositor.readUntil(uint32(b.shm.Id()), shmCreatePool)

	compositor.send(uint32(id), bufferRelease)
	if ev, ok := nextEvent(t, b).(csd.BufferReleaseEvent); !ok || ev.Buffer != id {
		t.Fatalf("release = %+v", ev)
	}

	if err := b.DestroyBuffer(id); err != nil {
		t.Fatal(err)
	}
}

func TestBackendProtocolError(t *testing.T) {
	b, compositor := newTestBackend(t)

	object := uint32(b.compositor.Id())
	compositor.send(displayID, displayError, object, uint32(1), "boom")

	_, err := b.NextEvent(context.Background())
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if perr.Object != object || perr.Code != 1 || perr.Message != "boom" {
		t.Fatalf("protocol error = %+v", perr)
	}
}

func TestBackendConcurrentClose(t *testing.T) {
	b, _ := newTestBackend(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errC := make(chan error, 1)
	go func() {
		_, err := b.NextEvent(ctx)
		errC <- err
	}()

	closeC := make(chan struct{})
	for i := 0; i < 2; i++ {
		go func() {
			b.Close()
			closeC <- struct{}{}
		}()
	}
	<-closeC
	<-closeC

	if err := <-errC; !errors.Is(err, ErrClosed) {
		t.Fatalf("NextEvent after close = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("third close = %v", err)
	}
}

func TestBackendCursor(t *testing.T) {
	b, compositor := newTestBackend(t)

	cursor, err := b.LoadCursor("left_ptr")
	if err != nil {
		t.Skipf("load cursor: %v", err)
	}
	if cursor.Width != 24 || cursor.HotspotX != 3 || cursor.HotspotY != 4 {
		t.Fatalf("cursor = %+v", cursor)
	}
	again, _ := b.LoadCursor("left_ptr")
	if again.Surface != cursor.Surface {
		t.Fatalf("cursor not cached")
	}

	if _, err := b.LoadCursor("watch"); !errors.Is(err, xcursor.ErrCursorNotFound) {
		t.Fatalf("expected ErrCursorNotFound, got %v", err)
	}

	b.SetCursor(9, &cursor)
	b.SetCursor(10, nil)

	pointer := uint32(b.pointer.Id())
	set := compositor.readUntil(pointer, uint16(pointerSetCursor))
	if serial, surface := set.uint32(), set.uint32(); serial != 9 || surface != uint32(cursor.Surface) {
		t.Fatalf("set_cursor = %d %d", serial, surface)
	}
	hide := compositor.readUntil(pointer, uint16(pointerSetCursor))
	if serial, surface := hide.uint32(), hide.uint32(); serial != 10 || surface != 0 {
		t.Fatalf("hide cursor = %d %d", serial, surface)
	}
}

func TestBackendBeginResize(t *testing.T) {
	b, compositor := newTestBackend(t)
	newTestToplevel(t, b, compositor)

	if err := b.BeginResize(11, csd.EdgeBottomRight); err != nil {
		t.Fatal(err)
	}

	msg := compositor.readUntil(uint32(b.toplevel.Id()), toplevelResize)
	seat, serial, edge := msg.uint32(), msg.uint32(), msg.uint32()
	if seat != uint32(b.seat.Id()) || serial != 11 || edge != uint32(csd.EdgeBottomRight) {
		t.Fatalf("resize = %d %d %d", seat, serial, edge)
	}
}

func TestBackendUnknownSurface(t *testing.T) {
	b, _ := newTestBackend(t)

	if err := b.Commit(999); !errors.Is(err, ErrUnknownSurface) {
		t.Fatalf("expected ErrUnknownSurface, got %v", err)
	}
	if err := b.SetWindowGeometry(csd.Rect{Width: 1, Height: 1}); !errors.Is(err, ErrNoToplevel) {
		t.Fatalf("expected ErrNoToplevel, got %v", err)
	}
}
