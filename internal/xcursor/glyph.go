package xcursor

import (
	"fmt"

	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	xgbcursor "github.com/jezek/xgbutil/xcursor"
)

// Glyph is an index into the X core "cursor" font.
type Glyph uint16

var glyphNames = map[string]Glyph{
	"X_cursor":            xgbcursor.XCursor,
	"arrow":               xgbcursor.Arrow,
	"bottom_left_corner":  xgbcursor.BottomLeftCorner,
	"bottom_right_corner": xgbcursor.BottomRightCorner,
	"bottom_side":         xgbcursor.BottomSide,
	"crosshair":           xgbcursor.Crosshair,
	"fleur":               xgbcursor.Fleur,
	"hand2":               xgbcursor.Hand2,
	"left_ptr":            xgbcursor.LeftPtr,
	"left_side":           xgbcursor.LeftSide,
	"question_arrow":      xgbcursor.QuestionArrow,
	"right_side":          xgbcursor.RightSide,
	"sb_h_double_arrow":   xgbcursor.SBHDoubleArrow,
	"sb_v_double_arrow":   xgbcursor.SBVDoubleArrow,
	"top_left_corner":     xgbcursor.TopLeftCorner,
	"top_right_corner":    xgbcursor.TopRightCorner,
	"top_side":            xgbcursor.TopSide,
	"watch":               xgbcursor.Watch,
	"xterm":               xgbcursor.XTerm,
}

// GlyphByName looks up a cursor by its X cursor font name, e.g. "left_ptr".
func GlyphByName(name string) (Glyph, error) {
	if glyph, ok := glyphNames[name]; ok {
		return glyph, nil
	}
	if alias, ok := aliases[name]; ok {
		if glyph, ok := glyphNames[alias]; ok {
			return glyph, nil
		}
	}
	return 0, fmt.Errorf("glyph %q: %w", name, ErrCursorNotFound)
}

// CreateCursor creates a white on black glyph cursor.
func CreateCursor(X *xgbutil.XUtil, glyph Glyph) (xproto.Cursor, error) {
	cursor, err := xgbcursor.CreateCursorExtra(X, uint16(glyph), 0xffff, 0xffff, 0xffff, 0, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("create glyph cursor %d: %w", glyph, err)
	}
	return cursor, nil
}
