package csd

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
)

var (
	ErrInvalidFrame = errors.New("frame length is not a multiple of 4*width")
	ErrUnconfigured = errors.New("window not configured yet")
)

type Phase int

const (
	PhaseUnconfigured Phase = iota
	PhaseConfigured
	PhaseClosing
)

func (p Phase) String() string {
	switch p {
	case PhaseUnconfigured:
		return "unconfigured"
	case PhaseConfigured:
		return "configured"
	case PhaseClosing:
		return "closing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// WindowState is only changed by the configure handshake.
type WindowState struct {
	Phase         Phase
	Size          Size
	States        []ToplevelState
	ShouldClose   bool
	PendingSerial uint32
	Acks          int
}

type WindowOptions struct {
	Title       string
	AppID       string
	Padding     int32
	DefaultSize Size
	BorderColor uint32
	Background  uint32
}

var DefaultWindowOptions = WindowOptions{
	Title:       "csdwin",
	AppID:       "csdwin",
	Padding:     40,
	DefaultSize: Size{Width: 320, Height: 320},
	BorderColor: 0xffffffff,
	Background:  0xff202020,
}

// Window is the toplevel the application sees. It owns the main surface, the
// decoration frame, and the configure handshake.
type Window struct {
	id   string
	g    *Globals
	log  *slog.Logger
	opts WindowOptions

	surface *Surface
	frame   *DecorationFrame
	pointer *PointerTracker
	state   WindowState
}

func NewWindow(g *Globals, opts WindowOptions) (*Window, error) {
	if opts.DefaultSize.Empty() {
		opts.DefaultSize = DefaultWindowOptions.DefaultSize
	}
	if opts.Padding <= 0 {
		opts.Padding = DefaultWindowOptions.Padding
	}

	id := uuid.NewString()
	w := &Window{
		id:   id,
		g:    g,
		log:  g.Log.With("window-id", id),
		opts: opts,
	}

	surface, err := NewSurface(g)
	if err != nil {
		return nil, err
	}
	w.surface = surface

	if err := w.init(); err != nil {
		return nil, errors.Join(err, w.Destroy())
	}

	return w, nil
}

func (w *Window) init() error {
	if err := w.g.Display.CreateToplevel(w.surface.ID(), w.opts.Title, w.opts.AppID); err != nil {
		return fmt.Errorf("create toplevel: %w", err)
	}
	if err := w.surface.Commit(); err != nil {
		return err
	}

	frame, err := NewDecorationFrame(w.g, w.surface, w.opts.Padding, w.opts.BorderColor)
	if err != nil {
		return err
	}
	w.frame = frame

	pointer, err := NewPointerTracker(w.g, w.surface.ID(), "left_ptr")
	if err != nil {
		return err
	}
	w.pointer = pointer.OnClick(func(c Click) error {
		w.log.Debug("Click", "x", c.X, "y", c.Y, "button", c.Button)
		return nil
	})

	return w.surface.Commit()
}

func (w *Window) ID() string {
	return w.id
}

func (w *Window) ShouldClose() bool {
	return w.state.ShouldClose
}

func (w *Window) State() WindowState {
	state := w.state
	state.States = slices.Clone(state.States)
	return state
}

func (w *Window) Surface() *Surface {
	return w.surface
}

func (w *Window) Frame() *DecorationFrame {
	return w.frame
}

func (w *Window) Pointer() *PointerTracker {
	return w.pointer
}

func (w *Window) HandleEvent(ev Event) error {
	switch ev := ev.(type) {
	case ConfigureEvent:
		w.log.Debug("ConfigureEvent", "width", ev.Width, "height", ev.Height, "serial", ev.Serial, "states", ev.States)
		return w.configure(ev)
	case CloseEvent:
		w.log.Debug("CloseEvent")
		w.state.ShouldClose = true
		w.state.Phase = PhaseClosing
		return nil
	case PointerEnterEvent, PointerLeaveEvent, PointerMotionEvent, PointerButtonEvent:
		if err := w.pointer.HandleEvent(ev); err != nil {
			return err
		}
		return w.frame.HandlePointer(ev)
	case BufferReleaseEvent:
		w.g.Pool.Release(ev.Buffer)
		return nil
	default:
		w.log.Debug("unknown event", "event", ev)
		return nil
	}
}

// configure applies one negotiation round. The ack is always the last step.
func (w *Window) configure(ev ConfigureEvent) error {
	w.state.PendingSerial = ev.Serial

	size := Size{Width: ev.Width, Height: ev.Height}
	if size.Width <= 0 {
		size.Width = w.opts.DefaultSize.Width
	}
	if size.Height <= 0 {
		size.Height = w.opts.DefaultSize.Height
	}

	if err := w.resize(size); err != nil {
		return fmt.Errorf("configure %d: %w", ev.Serial, err)
	}
	if err := w.frame.Layout(size.Width, size.Height); err != nil {
		return fmt.Errorf("configure %d: layout: %w", ev.Serial, err)
	}
	if err := w.g.Display.SetWindowGeometry(Rect{Width: size.Width, Height: size.Height}); err != nil {
		return fmt.Errorf("configure %d: %w", ev.Serial, err)
	}
	if err := w.surface.Commit(); err != nil {
		return fmt.Errorf("configure %d: %w", ev.Serial, err)
	}
	if err := w.g.Display.AckConfigure(ev.Serial); err != nil {
		return fmt.Errorf("configure %d: ack: %w", ev.Serial, err)
	}

	w.state.Size = size
	w.state.States = slices.Clone(ev.States)
	w.state.PendingSerial = 0
	w.state.Acks++
	if w.state.Phase == PhaseUnconfigured {
		w.state.Phase = PhaseConfigured
	}

	return nil
}

// resize attaches a fresh placeholder frame of the new size without
// committing it.
func (w *Window) resize(size Size) error {
	buf, err := w.g.Pool.Acquire(size.Width, size.Height)
	if err != nil {
		return err
	}
	paintBackground(buf, w.opts.Background)

	if err := w.surface.Attach(buf); err != nil {
		return err
	}
	w.surface.DamageAll()
	return nil
}

// paintBackground fills buf with a vertical fade of the background color.
func paintBackground(buf *PixelBuffer, xrgb uint32) {
	stride := int(buf.Stride())
	r, g, b := int(xrgb>>16&0xff), int(xrgb>>8&0xff), int(xrgb&0xff)
	for y := 0; y < int(buf.Height); y++ {
		shade := 255 - (y*64)/int(buf.Height)
		row := buf.Pix[y*stride : (y+1)*stride]
		for x := 0; x < stride; x += 4 {
			row[x] = byte(b * shade / 255)
			row[x+1] = byte(g * shade / 255)
			row[x+2] = byte(r * shade / 255)
			row[x+3] = 0xff
		}
	}
}

// Draw shows pix as the main content. The height is len(pix)/(4*width).
func (w *Window) Draw(pix []byte, width int) error {
	if width <= 0 || len(pix) == 0 || len(pix)%(4*width) != 0 {
		return fmt.Errorf("draw %d bytes at width %d: %w", len(pix), width, ErrInvalidFrame)
	}
	if w.state.Phase == PhaseUnconfigured {
		return fmt.Errorf("draw: %w", ErrUnconfigured)
	}
	height := len(pix) / 4 / width

	buf, err := w.g.Pool.Acquire(int32(width), int32(height))
	if err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	copy(buf.Pix, pix)

	if err := w.surface.Attach(buf); err != nil {
		return err
	}
	w.surface.DamageAll()
	return w.surface.Commit()
}

// Destroy tears down children before their parent.
func (w *Window) Destroy() error {
	var errs []error
	if w.frame != nil {
		errs = append(errs, w.frame.Destroy())
		w.frame = nil
	}
	errs = append(errs, w.g.Display.DestroyToplevel())
	if w.surface != nil {
		errs = append(errs, w.surface.Destroy())
	}
	return errors.Join(errs...)
}
