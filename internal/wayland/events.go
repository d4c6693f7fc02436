package wayland

import (
	"sync"

	"github.com/ItsNotGoodName/csdwin/internal/csd"
	"github.com/neurlang/wayland/wl"
	"github.com/neurlang/wayland/xdg"
)

// eventQueue is filled by handlers on the receive goroutine and drained by
// NextEvent. Pushing never blocks.
type eventQueue struct {
	mu     sync.Mutex
	events []csd.Event
	notify chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev csd.Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop() (csd.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

// commitGate holds the toplevel's commit while a configure is un-acked so
// that ack_configure always reaches the compositor first.
type commitGate struct {
	unacked int
	held    bool
}

func (g *commitGate) configure() {
	g.unacked++
}

// commit reports whether a commit may be sent now.
func (g *commitGate) commit() bool {
	if g.unacked > 0 {
		g.held = true
		return false
	}
	return true
}

// ack reports whether a held commit must follow the ack.
func (g *commitGate) ack() bool {
	g.unacked = max(g.unacked-1, 0)
	held := g.held
	g.held = false
	return held
}

func (g *commitGate) reset() {
	*g = commitGate{}
}

type pendingConfigure struct {
	width  int32
	height int32
	states []csd.ToplevelState
}

// listener receives every object event the backend cares about. Its methods
// run on the receive goroutine.
type listener struct {
	b *Backend
	// configure is filled by xdg_toplevel.configure and consumed by the
	// xdg_surface.configure that closes the sequence.
	configure pendingConfigure
}

func (l *listener) HandleDisplayError(ev wl.DisplayErrorEvent) {
	perr := &ProtocolError{Code: ev.Code, Message: ev.Message}
	if ev.ObjectId != nil {
		perr.Object = uint32(ev.ObjectId.Id())
	}
	l.b.fail(perr)
}

func (l *listener) HandleRegistryGlobal(ev wl.RegistryGlobalEvent) {
	l.b.mu.Lock()
	l.b.globals[ev.Name] = global{name: ev.Name, iface: ev.Interface, version: ev.Version}
	l.b.mu.Unlock()
}

func (l *listener) HandleRegistryGlobalRemove(ev wl.RegistryGlobalRemoveEvent) {
	l.b.mu.Lock()
	delete(l.b.globals, ev.Name)
	l.b.mu.Unlock()
}

func (l *listener) HandleWmBasePing(ev xdg.WmBasePingEvent) {
	if err := l.b.wmBase.Pong(ev.Serial); err != nil {
		l.b.fail(err)
	}
}

func (l *listener) HandleSeatCapabilities(ev wl.SeatCapabilitiesEvent) {
	if err := l.b.capabilities(uint32(ev.Capabilities)); err != nil {
		l.b.fail(err)
	}
}

func (l *listener) HandleToplevelConfigure(ev xdg.ToplevelConfigureEvent) {
	l.configure = pendingConfigure{width: int32(ev.Width), height: int32(ev.Height)}
	for _, st := range ev.States {
		l.configure.states = append(l.configure.states, csd.ToplevelState(st))
	}
}

func (l *listener) HandleToplevelClose(ev xdg.ToplevelCloseEvent) {
	l.b.queue.push(csd.CloseEvent{})
}

func (l *listener) HandleSurfaceConfigure(ev xdg.SurfaceConfigureEvent) {
	l.b.queue.push(csd.ConfigureEvent{
		Width:  l.configure.width,
		Height: l.configure.height,
		States: l.configure.states,
		Serial: ev.Serial,
	})
	l.configure = pendingConfigure{}
}

func (l *listener) HandlePointerEnter(ev wl.PointerEnterEvent) {
	l.b.queue.push(csd.PointerEnterEvent{
		Serial:  ev.Serial,
		Surface: surfaceID(ev.Surface),
		X:       float64(ev.SurfaceX),
		Y:       float64(ev.SurfaceY),
	})
}

func (l *listener) HandlePointerLeave(ev wl.PointerLeaveEvent) {
	l.b.queue.push(csd.PointerLeaveEvent{Serial: ev.Serial, Surface: surfaceID(ev.Surface)})
}

func (l *listener) HandlePointerMotion(ev wl.PointerMotionEvent) {
	l.b.queue.push(csd.PointerMotionEvent{Time: ev.Time, X: float64(ev.SurfaceX), Y: float64(ev.SurfaceY)})
}

func (l *listener) HandlePointerButton(ev wl.PointerButtonEvent) {
	l.b.queue.push(csd.PointerButtonEvent{
		Serial:  ev.Serial,
		Time:    ev.Time,
		Button:  ev.Button,
		Pressed: uint32(ev.State) == pointerButtonPressed,
	})
}

// surfaceID is 0 for a surface the client has already destroyed.
func surfaceID(s *wl.Surface) csd.SurfaceID {
	if s == nil {
		return 0
	}
	return csd.SurfaceID(s.Id())
}

// syncDone is closed by the wl_callback of a display sync.
type syncDone chan struct{}

func (d syncDone) HandleCallbackDone(wl.CallbackDoneEvent) {
	close(d)
}
