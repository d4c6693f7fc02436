package csd

import "fmt"

// Event is anything delivered by an EventSource.
type Event interface{}

type ToplevelState uint32

// Values match xdg_toplevel.state.
const (
	StateMaximized   ToplevelState = 1
	StateFullscreen  ToplevelState = 2
	StateResizing    ToplevelState = 3
	StateActivated   ToplevelState = 4
	StateTiledLeft   ToplevelState = 5
	StateTiledRight  ToplevelState = 6
	StateTiledTop    ToplevelState = 7
	StateTiledBottom ToplevelState = 8
)

func (s ToplevelState) String() string {
	switch s {
	case StateMaximized:
		return "maximized"
	case StateFullscreen:
		return "fullscreen"
	case StateResizing:
		return "resizing"
	case StateActivated:
		return "activated"
	case StateTiledLeft:
		return "tiled-left"
	case StateTiledRight:
		return "tiled-right"
	case StateTiledTop:
		return "tiled-top"
	case StateTiledBottom:
		return "tiled-bottom"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

type (
	// ConfigureEvent is one negotiation round. Zero width or height means the
	// client chooses.
	ConfigureEvent struct {
		Width  int32
		Height int32
		States []ToplevelState
		Serial uint32
	}

	CloseEvent struct{}

	PointerEnterEvent struct {
		Serial  uint32
		Surface SurfaceID
		X       float64
		Y       float64
	}

	PointerLeaveEvent struct {
		Serial  uint32
		Surface SurfaceID
	}

	PointerMotionEvent struct {
		Time uint32
		X    float64
		Y    float64
	}

	PointerButtonEvent struct {
		Serial  uint32
		Time    uint32
		Button  uint32
		Pressed bool
	}

	BufferReleaseEvent struct {
		Buffer BufferID
	}
)

// Linux input event codes, as carried by wl_pointer.button.
const (
	ButtonLeft   uint32 = 0x110
	ButtonRight  uint32 = 0x111
	ButtonMiddle uint32 = 0x112
)
