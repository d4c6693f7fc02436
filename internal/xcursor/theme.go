package xcursor

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	ErrCursorNotFound = errors.New("cursor not found")
	ErrInvalidFile    = errors.New("invalid xcursor file")
)

const (
	fileMagic   = "Xcur"
	imageType   = 0xfffd0002
	imageHeader = 36
	defaultSize = 24
	maxImageDim = 0x7fff
)

// aliases maps X cursor font names to their CSS names, which newer themes use.
var aliases = map[string]string{
	"left_ptr":            "default",
	"default":             "left_ptr",
	"top_left_corner":     "nw-resize",
	"top_right_corner":    "ne-resize",
	"bottom_left_corner":  "sw-resize",
	"bottom_right_corner": "se-resize",
	"nw-resize":           "top_left_corner",
	"ne-resize":           "top_right_corner",
	"sw-resize":           "bottom_left_corner",
	"se-resize":           "bottom_right_corner",
}

// Image is one cursor frame. Pix holds premultiplied ARGB pixels as
// little-endian 32-bit words, which is the ARGB8888 memory layout.
type Image struct {
	Size   uint32
	Width  uint32
	Height uint32
	XHot   uint32
	YHot   uint32
	Delay  uint32
	Pix    []byte
}

// SizeFromEnv returns XCURSOR_SIZE, or 24 when it is unset or invalid.
func SizeFromEnv() int {
	size, err := strconv.Atoi(os.Getenv("XCURSOR_SIZE"))
	if err != nil || size <= 0 {
		return defaultSize
	}
	return size
}

// Theme is a named cursor theme and the directories searched for it.
type Theme struct {
	Name  string
	Paths []string
}

// ThemeFromEnv uses XCURSOR_THEME and XCURSOR_PATH like libXcursor does.
func ThemeFromEnv() Theme {
	name := os.Getenv("XCURSOR_THEME")
	if name == "" {
		name = "default"
	}
	return Theme{Name: name, Paths: SearchPath()}
}

func SearchPath() []string {
	if env := os.Getenv("XCURSOR_PATH"); env != "" {
		return filepath.SplitList(env)
	}

	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".local", "share", "icons"), filepath.Join(home, ".icons"))
	}
	return append(paths, "/usr/share/icons", "/usr/share/pixmaps")
}

// Load finds name in the theme or the themes it inherits and returns the
// first frame closest to size.
func (t Theme) Load(name string, size int) (*Image, error) {
	names := []string{name}
	if alias, ok := aliases[name]; ok {
		names = append(names, alias)
	}

	for _, n := range names {
		path, err := t.find(t.Name, n, make(map[string]bool))
		if err != nil {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		img, err := Decode(f, size)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return img, nil
	}

	return nil, fmt.Errorf("%s/%s: %w", t.Name, name, ErrCursorNotFound)
}

func (t Theme) find(theme, name string, seen map[string]bool) (string, error) {
	if seen[theme] {
		return "", ErrCursorNotFound
	}
	seen[theme] = true

	for _, dir := range t.Paths {
		path := filepath.Join(dir, theme, "cursors", name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}

	for _, dir := range t.Paths {
		for _, parent := range readInherits(filepath.Join(dir, theme, "index.theme")) {
			if path, err := t.find(parent, name, seen); err == nil {
				return path, nil
			}
		}
	}

	return "", ErrCursorNotFound
}

func readInherits(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var themes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok || strings.TrimSpace(key) != "Inherits" {
			continue
		}
		for _, theme := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' || r == ' ' }) {
			themes = append(themes, theme)
		}
	}
	return themes
}

type tocEntry struct {
	Type     uint32
	Subtype  uint32
	Position uint32
}

// Decode reads an Xcursor file and returns the first image whose nominal size
// is closest to size.
func Decode(r io.Reader, size int) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < 16 || string(data[:4]) != fileMagic {
		return nil, ErrInvalidFile
	}

	le := binary.LittleEndian
	headerSize := le.Uint32(data[4:])
	ntoc := le.Uint32(data[12:])
	if headerSize < 16 || uint64(headerSize)+uint64(ntoc)*12 > uint64(len(data)) {
		return nil, ErrInvalidFile
	}

	toc := make([]tocEntry, ntoc)
	if err := binary.Read(bytes.NewReader(data[headerSize:]), le, toc); err != nil {
		return nil, fmt.Errorf("%w: toc: %w", ErrInvalidFile, err)
	}

	var best *tocEntry
	for i := range toc {
		e := &toc[i]
		if e.Type != imageType {
			continue
		}
		if best == nil || distance(e.Subtype, size) < distance(best.Subtype, size) {
			best = e
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no images: %w", ErrCursorNotFound)
	}

	return decodeImage(data, best.Position)
}

func decodeImage(data []byte, pos uint32) (*Image, error) {
	if uint64(pos)+imageHeader > uint64(len(data)) {
		return nil, ErrInvalidFile
	}

	le := binary.LittleEndian
	h := data[pos:]
	if le.Uint32(h[0:]) != imageHeader || le.Uint32(h[4:]) != imageType {
		return nil, fmt.Errorf("%w: bad image header at %d", ErrInvalidFile, pos)
	}

	img := &Image{
		Size:   le.Uint32(h[8:]),
		Width:  le.Uint32(h[16:]),
		Height: le.Uint32(h[20:]),
		XHot:   le.Uint32(h[24:]),
		YHot:   le.Uint32(h[28:]),
		Delay:  le.Uint32(h[32:]),
	}
	if img.Width == 0 || img.Height == 0 || img.Width > maxImageDim || img.Height > maxImageDim {
		return nil, fmt.Errorf("%w: image %dx%d", ErrInvalidFile, img.Width, img.Height)
	}

	n := uint64(img.Width) * uint64(img.Height) * 4
	if uint64(pos)+imageHeader+n > uint64(len(data)) {
		return nil, fmt.Errorf("%w: truncated pixels", ErrInvalidFile)
	}
	img.Pix = bytes.Clone(h[imageHeader : imageHeader+n])

	return img, nil
}

func distance(subtype uint32, size int) int {
	d := int(subtype) - size
	if d < 0 {
		return -d
	}
	return d
}
