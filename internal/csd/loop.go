package csd

import (
	"context"
	"fmt"
	"log/slog"
)

type Flusher interface {
	Flush() error
}

// Loop delivers events to a window strictly one at a time.
type Loop struct {
	Source  EventSource
	Display Flusher
	Window  *Window
	// OnUpdate is called after every handled event.
	OnUpdate func(Snapshot)
}

// Run returns nil once the window should close.
func (l Loop) Run(ctx context.Context) error {
	slog := slog.With("func", "csd.Loop.Run", "window-id", l.Window.ID())

	if err := l.Display.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	for !l.Window.ShouldClose() {
		ev, err := l.Source.NextEvent(ctx)
		if err != nil {
			return err
		}

		if err := l.Window.HandleEvent(ev); err != nil {
			return err
		}

		if err := l.Display.Flush(); err != nil {
			return fmt.Errorf("flush: %w", err)
		}

		if l.OnUpdate != nil {
			l.OnUpdate(l.Window.Snapshot())
		}
	}

	slog.Debug("exit: window should close")
	return nil
}
