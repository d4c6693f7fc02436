package csd

// Snapshot is a read-only copy of a window for reporting.
type Snapshot struct {
	ID            string          `json:"id"`
	Phase         string          `json:"phase"`
	Width         int32           `json:"width"`
	Height        int32           `json:"height"`
	States        []string        `json:"states"`
	ShouldClose   bool            `json:"should_close"`
	PendingSerial uint32          `json:"pending_serial"`
	Acks          int             `json:"acks"`
	Padding       int32           `json:"padding"`
	Corners       []CornerSummary `json:"corners"`
	Pointer       PointerSummary  `json:"pointer"`
	Buffers       PoolStats       `json:"buffers"`
}

type CornerSummary struct {
	Orientation string `json:"orientation"`
	X           int32  `json:"x"`
	Y           int32  `json:"y"`
	Hovered     bool   `json:"hovered"`
}

type PointerSummary struct {
	Inside bool    `json:"inside"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Serial uint32  `json:"serial"`
}

func (w *Window) Snapshot() Snapshot {
	s := Snapshot{
		ID:            w.id,
		Phase:         w.state.Phase.String(),
		Width:         w.state.Size.Width,
		Height:        w.state.Size.Height,
		States:        []string{},
		ShouldClose:   w.state.ShouldClose,
		PendingSerial: w.state.PendingSerial,
		Acks:          w.state.Acks,
		Corners:       []CornerSummary{},
		Buffers:       w.g.Pool.Stats(),
	}
	for _, st := range w.state.States {
		s.States = append(s.States, st.String())
	}
	if w.pointer != nil {
		ps := w.pointer.State()
		s.Pointer = PointerSummary{Inside: ps.Inside, X: ps.X, Y: ps.Y, Serial: ps.Serial}
	}
	if w.frame != nil {
		s.Padding = w.frame.Padding()
		for _, corner := range w.frame.Corners() {
			if corner == nil {
				continue
			}
			pos := corner.Position()
			s.Corners = append(s.Corners, CornerSummary{
				Orientation: corner.Orientation().String(),
				X:           pos.X,
				Y:           pos.Y,
				Hovered:     corner.Pointer().State().Inside,
			})
		}
	}
	return s
}
