package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ItsNotGoodName/csdwin/internal/csd"
)

const (
	BackendAuto    = "auto"
	BackendWayland = "wayland"
	BackendX11     = "x11"
)

var ErrInvalidConfig = errors.New("invalid config")

var defaultConfig = Config{
	Backend:       BackendAuto,
	Title:         csd.DefaultWindowOptions.Title,
	AppID:         csd.DefaultWindowOptions.AppID,
	Padding:       csd.DefaultWindowOptions.Padding,
	DefaultWidth:  csd.DefaultWindowOptions.DefaultSize.Width,
	DefaultHeight: csd.DefaultWindowOptions.DefaultSize.Height,
	BorderColor:   "#ffffff",
	Background:    "#202020",
	CursorTheme:   "",
	CursorSize:    0,
	StatusAddr:    "",
}

type Config struct {
	Backend       string `json:"backend" yaml:"backend"` // [auto, wayland, x11]
	Title         string `json:"title" yaml:"title"`
	AppID         string `json:"app_id" yaml:"app_id"`
	Padding       int32  `json:"padding" yaml:"padding"`
	DefaultWidth  int32  `json:"default_width" yaml:"default_width"`
	DefaultHeight int32  `json:"default_height" yaml:"default_height"`
	BorderColor   string `json:"border_color" yaml:"border_color"`
	Background    string `json:"background" yaml:"background"`
	// CursorTheme and CursorSize fall back to XCURSOR_THEME and XCURSOR_SIZE.
	CursorTheme string `json:"cursor_theme" yaml:"cursor_theme"`
	CursorSize  int    `json:"cursor_size" yaml:"cursor_size"`
	StatusAddr  string `json:"status_addr" yaml:"status_addr"`
}

// Normalize fills in defaults for empty fields and rejects invalid values.
func Normalize(cfg Config) (Config, error) {
	if cfg.Backend == "" {
		cfg.Backend = defaultConfig.Backend
	}
	switch cfg.Backend {
	case BackendAuto, BackendWayland, BackendX11:
	default:
		return cfg, fmt.Errorf("%w: backend %q", ErrInvalidConfig, cfg.Backend)
	}

	if cfg.Title == "" {
		cfg.Title = defaultConfig.Title
	}
	if cfg.AppID == "" {
		cfg.AppID = defaultConfig.AppID
	}

	if cfg.Padding < 0 {
		return cfg, fmt.Errorf("%w: padding %d", ErrInvalidConfig, cfg.Padding)
	}
	if cfg.Padding == 0 {
		cfg.Padding = defaultConfig.Padding
	}

	if cfg.DefaultWidth < 0 || cfg.DefaultHeight < 0 {
		return cfg, fmt.Errorf("%w: default size %dx%d", ErrInvalidConfig, cfg.DefaultWidth, cfg.DefaultHeight)
	}
	if cfg.DefaultWidth == 0 {
		cfg.DefaultWidth = defaultConfig.DefaultWidth
	}
	if cfg.DefaultHeight == 0 {
		cfg.DefaultHeight = defaultConfig.DefaultHeight
	}

	if cfg.BorderColor == "" {
		cfg.BorderColor = defaultConfig.BorderColor
	}
	if cfg.Background == "" {
		cfg.Background = defaultConfig.Background
	}
	for _, color := range []string{cfg.BorderColor, cfg.Background} {
		if _, err := ParseColor(color); err != nil {
			return cfg, err
		}
	}

	if cfg.CursorSize < 0 {
		return cfg, fmt.Errorf("%w: cursor size %d", ErrInvalidConfig, cfg.CursorSize)
	}

	return cfg, nil
}

// ParseColor parses "#rrggbb" into an opaque XRGB value.
func ParseColor(s string) (uint32, error) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || len(hex) != 6 {
		return 0, fmt.Errorf("%w: color %q", ErrInvalidConfig, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: color %q", ErrInvalidConfig, s)
	}
	return 0xff000000 | uint32(v), nil
}

// WindowOptions expects a normalized config.
func (c Config) WindowOptions() (csd.WindowOptions, error) {
	border, err := ParseColor(c.BorderColor)
	if err != nil {
		return csd.WindowOptions{}, err
	}
	background, err := ParseColor(c.Background)
	if err != nil {
		return csd.WindowOptions{}, err
	}

	return csd.WindowOptions{
		Title:       c.Title,
		AppID:       c.AppID,
		Padding:     c.Padding,
		DefaultSize: csd.Size{Width: c.DefaultWidth, Height: c.DefaultHeight},
		BorderColor: border,
		Background:  background,
	}, nil
}
