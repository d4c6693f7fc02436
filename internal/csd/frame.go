package csd

import "errors"

// DecorationFrame owns the four corner elements of a window.
type DecorationFrame struct {
	padding int32
	corners [4]*BorderElement
}

func NewDecorationFrame(g *Globals, parent *Surface, padding int32, color uint32) (*DecorationFrame, error) {
	f := &DecorationFrame{padding: padding}

	for i, o := range Orientations {
		corner, err := NewBorderElement(g, o, padding, color, parent)
		if err != nil {
			return nil, errors.Join(err, f.Destroy())
		}
		f.corners[i] = corner
	}

	return f, nil
}

func (f *DecorationFrame) Padding() int32 {
	return f.padding
}

func (f *DecorationFrame) Corners() [4]*BorderElement {
	return f.corners
}

// Positions is indexed like Orientations.
func (f *DecorationFrame) Positions() [4]Point {
	var pos [4]Point
	for i, corner := range f.corners {
		if corner != nil {
			pos[i] = corner.Position()
		}
	}
	return pos
}

// Layout repositions every corner for a parent of width x height.
func (f *DecorationFrame) Layout(width, height int32) error {
	for _, corner := range f.corners {
		if corner == nil {
			continue
		}
		if err := corner.Reposition(width, height); err != nil {
			return err
		}
	}
	return nil
}

func (f *DecorationFrame) HandlePointer(ev Event) error {
	for _, corner := range f.corners {
		if corner == nil {
			continue
		}
		if err := corner.HandlePointer(ev); err != nil {
			return err
		}
	}
	return nil
}

func (f *DecorationFrame) Destroy() error {
	var errs []error
	for i, corner := range f.corners {
		if corner == nil {
			continue
		}
		errs = append(errs, corner.Destroy())
		f.corners[i] = nil
	}
	return errors.Join(errs...)
}
