package csd

import "log/slog"

// Globals is the process-wide context every element borrows from. It is
// passed down explicitly and shared by pointer.
type Globals struct {
	Display Display
	Pool    *BufferPool
	Log     *slog.Logger
}

func NewGlobals(display Display, opts ...PoolOption) *Globals {
	return &Globals{
		Display: display,
		Pool:    NewBufferPool(display, opts...),
		Log:     slog.Default(),
	}
}
