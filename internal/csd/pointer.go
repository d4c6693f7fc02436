package csd

import "fmt"

type CursorChange int

const (
	CursorKeep CursorChange = iota
	CursorApply
	CursorClear
)

// PointerState is the pointer as seen by one watched surface.
type PointerState struct {
	Surface SurfaceID
	Inside  bool
	X       float64
	Y       float64
	Serial  uint32
}

type Click struct {
	X      float64
	Y      float64
	Serial uint32
	Button uint32
}

// Transition is the pure state machine behind PointerTracker. Enter and leave
// events for other surfaces are ignored.
func (s PointerState) Transition(ev Event) (PointerState, CursorChange, *Click) {
	switch ev := ev.(type) {
	case PointerEnterEvent:
		if ev.Surface != s.Surface {
			return s, CursorKeep, nil
		}
		// A repeated enter carries a newer serial for set_cursor.
		s.Inside = true
		s.X, s.Y = ev.X, ev.Y
		s.Serial = ev.Serial
		return s, CursorApply, nil
	case PointerMotionEvent:
		if s.Inside {
			s.X, s.Y = ev.X, ev.Y
		}
		return s, CursorKeep, nil
	case PointerLeaveEvent:
		if !s.Inside || ev.Surface != s.Surface {
			return s, CursorKeep, nil
		}
		s.Inside = false
		s.Serial = ev.Serial
		return s, CursorClear, nil
	case PointerButtonEvent:
		s.Serial = ev.Serial
		if !s.Inside || !ev.Pressed {
			return s, CursorKeep, nil
		}
		return s, CursorKeep, &Click{X: s.X, Y: s.Y, Serial: ev.Serial, Button: ev.Button}
	default:
		return s, CursorKeep, nil
	}
}

type ClickFunc func(click Click) error

// PointerTracker watches one surface and shows its cursor while the pointer
// is over it.
type PointerTracker struct {
	state   PointerState
	cursor  Cursor
	cursors CursorSource
	onClick ClickFunc
}

// NewPointerTracker loads the named cursor. A missing cursor is an error.
func NewPointerTracker(g *Globals, surface SurfaceID, cursorName string) (*PointerTracker, error) {
	cursor, err := g.Display.LoadCursor(cursorName)
	if err != nil {
		return nil, fmt.Errorf("load cursor %q: %w", cursorName, err)
	}

	return &PointerTracker{
		state:   PointerState{Surface: surface},
		cursor:  cursor,
		cursors: g.Display,
	}, nil
}

func (t *PointerTracker) OnClick(fn ClickFunc) *PointerTracker {
	t.onClick = fn
	return t
}

func (t *PointerTracker) State() PointerState {
	return t.state
}

func (t *PointerTracker) Cursor() Cursor {
	return t.cursor
}

func (t *PointerTracker) HandleEvent(ev Event) error {
	state, change, click := t.state.Transition(ev)
	t.state = state

	switch change {
	case CursorApply:
		if err := t.cursors.SetCursor(state.Serial, &t.cursor); err != nil {
			return err
		}
	case CursorClear:
		if err := t.cursors.SetCursor(state.Serial, nil); err != nil {
			return err
		}
	}

	if click != nil && t.onClick != nil {
		return t.onClick(*click)
	}
	return nil
}
