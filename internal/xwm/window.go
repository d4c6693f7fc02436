package xwm

import (
	"errors"

	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/ewmh"
	"github.com/jezek/xgbutil/icccm"
	"github.com/jezek/xgbutil/xwindow"
)

const inputEventMask = xproto.EventMaskEnterWindow |
	xproto.EventMaskLeaveWindow |
	xproto.EventMaskPointerMotion |
	xproto.EventMaskButtonPress |
	xproto.EventMaskButtonRelease

// CreateFrame creates the unmapped top level window that holds the content
// and decoration windows.
func CreateFrame(X *xgbutil.XUtil, width, height int) (*xwindow.Window, error) {
	win, err := xwindow.Generate(X)
	if err != nil {
		return nil, err
	}

	// Values follow the mask order: back pixel, event mask.
	if err := win.CreateChecked(X.RootWin(), 0, 0, width, height,
		xproto.CwBackPixel|xproto.CwEventMask, 0, xproto.EventMaskStructureNotify); err != nil {
		return nil, err
	}

	return win, nil
}

// CreateChild creates an input window inside parent. Mapping is left to the
// caller.
func CreateChild(win *xwindow.Window, parent xproto.Window, x, y, w, h int) error {
	return win.CreateChecked(parent, x, y, max(w, 1), max(h, 1),
		xproto.CwBackPixel|xproto.CwEventMask, 0, inputEventMask)
}

// StackBelow places wid directly below its sibling.
func StackBelow(X *xgbutil.XUtil, wid, sibling xproto.Window) {
	xproto.ConfigureWindow(X.Conn(), wid,
		xproto.ConfigWindowSibling|xproto.ConfigWindowStackMode,
		[]uint32{uint32(sibling), xproto.StackModeBelow})
}

// SetTitle sets both the ICCCM and EWMH names along with WM_CLASS.
func SetTitle(X *xgbutil.XUtil, wid xproto.Window, title, class string) error {
	return errors.Join(
		icccm.WmNameSet(X, wid, title),
		ewmh.WmNameSet(X, wid, title),
		icccm.WmClassSet(X, wid, &icccm.WmClass{Instance: class, Class: class}),
	)
}

// SetDeleteProtocol asks the window manager for WM_DELETE_WINDOW messages
// instead of killing the connection.
func SetDeleteProtocol(X *xgbutil.XUtil, wid xproto.Window) error {
	return icccm.WmProtocolsSet(X, wid, []string{"WM_DELETE_WINDOW"})
}
