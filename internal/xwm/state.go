package xwm

import (
	"slices"

	"github.com/ItsNotGoodName/csdwin/internal/csd"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil/ewmh"
)

// maxRequested bounds the frame sizes waiting for their ConfigureNotify. A
// window manager that refuses requests never echoes them.
const maxRequested = 8

// State tracks one decorated window as seen through X events and turns those
// events into csd events. It never talks to the server.
type State struct {
	Frame  xproto.Window
	Margin int32
	// Size is the content size last configured or committed.
	Size   csd.Size
	Serial uint32
	// Focus is the window the pointer is in, or 0.
	Focus xproto.Window

	Protocols    xproto.Atom
	DeleteWindow xproto.Atom

	// requested holds content sizes sent to the frame, oldest first.
	requested []csd.Size
}

func (s *State) NextSerial() uint32 {
	s.Serial++
	return s.Serial
}

// ContentSize is the content window size inside a frame of width x height.
func (s *State) ContentSize(width, height uint16) csd.Size {
	return csd.Size{
		Width:  int32(width) - 2*s.Margin,
		Height: int32(height) - 2*s.Margin,
	}
}

// RequestSize records a content size the client committed. It reports
// whether the frame must be resized to fit, which is false when the size
// answers a configure that came from the frame.
func (s *State) RequestSize(size csd.Size) bool {
	if size == s.Size {
		return false
	}
	s.Size = size
	s.requested = append(s.requested, size)
	if len(s.requested) > maxRequested {
		s.requested = s.requested[1:]
	}
	return true
}

// echo consumes the request that produced a frame of size along with every
// older request.
func (s *State) echo(size csd.Size) bool {
	i := slices.Index(s.requested, size)
	if i < 0 {
		return false
	}
	s.requested = s.requested[i+1:]
	return true
}

func (s *State) Translate(ev xgb.Event) []csd.Event {
	switch ev := ev.(type) {
	case xproto.ConfigureNotifyEvent:
		if ev.Window != s.Frame {
			return nil
		}
		size := s.ContentSize(ev.Width, ev.Height)
		if s.echo(size) || size.Empty() || size == s.Size {
			return nil
		}
		s.Size = size
		return []csd.Event{csd.ConfigureEvent{Width: size.Width, Height: size.Height, Serial: s.NextSerial()}}
	case xproto.ClientMessageEvent:
		if ev.Type != s.Protocols || ev.Format != 32 || len(ev.Data.Data32) == 0 {
			return nil
		}
		if xproto.Atom(ev.Data.Data32[0]) == s.DeleteWindow {
			return []csd.Event{csd.CloseEvent{}}
		}
	case xproto.DestroyNotifyEvent:
		if ev.Window == s.Frame {
			return []csd.Event{csd.CloseEvent{}}
		}
	case xproto.EnterNotifyEvent:
		s.Focus = ev.Event
		return []csd.Event{csd.PointerEnterEvent{
			Serial:  s.NextSerial(),
			Surface: csd.SurfaceID(ev.Event),
			X:       float64(ev.EventX),
			Y:       float64(ev.EventY),
		}}
	case xproto.LeaveNotifyEvent:
		if s.Focus == ev.Event {
			s.Focus = 0
		}
		return []csd.Event{csd.PointerLeaveEvent{Serial: s.NextSerial(), Surface: csd.SurfaceID(ev.Event)}}
	case xproto.MotionNotifyEvent:
		return []csd.Event{csd.PointerMotionEvent{Time: uint32(ev.Time), X: float64(ev.EventX), Y: float64(ev.EventY)}}
	case xproto.ButtonPressEvent:
		if button, ok := pointerButton(ev.Detail); ok {
			return []csd.Event{csd.PointerButtonEvent{Serial: s.NextSerial(), Time: uint32(ev.Time), Button: button, Pressed: true}}
		}
	case xproto.ButtonReleaseEvent:
		if button, ok := pointerButton(ev.Detail); ok {
			return []csd.Event{csd.PointerButtonEvent{Serial: s.NextSerial(), Time: uint32(ev.Time), Button: button}}
		}
	}
	return nil
}

// pointerButton maps core X buttons to evdev codes. Wheel buttons are dropped.
func pointerButton(detail xproto.Button) (uint32, bool) {
	switch detail {
	case xproto.ButtonIndex1:
		return csd.ButtonLeft, true
	case xproto.ButtonIndex2:
		return csd.ButtonMiddle, true
	case xproto.ButtonIndex3:
		return csd.ButtonRight, true
	default:
		return 0, false
	}
}

// moveResizeDirection maps an edge to a _NET_WM_MOVERESIZE direction.
func moveResizeDirection(edge csd.Edge) (int, bool) {
	switch edge {
	case csd.EdgeTopLeft:
		return ewmh.SizeTopLeft, true
	case csd.EdgeTop:
		return ewmh.SizeTop, true
	case csd.EdgeTopRight:
		return ewmh.SizeTopRight, true
	case csd.EdgeRight:
		return ewmh.SizeRight, true
	case csd.EdgeBottomRight:
		return ewmh.SizeBottomRight, true
	case csd.EdgeBottom:
		return ewmh.SizeBottom, true
	case csd.EdgeBottomLeft:
		return ewmh.SizeBottomLeft, true
	case csd.EdgeLeft:
		return ewmh.SizeLeft, true
	default:
		return 0, false
	}
}
