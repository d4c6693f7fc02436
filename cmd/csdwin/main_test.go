package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ItsNotGoodName/csdwin/internal/config"
)

func TestResolveBackend(t *testing.T) {
	t.Setenv("WAYLAND_DISPLAY", "wayland-1")
	if got := ResolveBackend(config.BackendAuto); got != config.BackendWayland {
		t.Fatalf("auto with WAYLAND_DISPLAY = %q", got)
	}
	if got := ResolveBackend(config.BackendX11); got != config.BackendX11 {
		t.Fatalf("explicit x11 = %q", got)
	}

	t.Setenv("WAYLAND_DISPLAY", "")
	if got := ResolveBackend(config.BackendAuto); got != config.BackendX11 {
		t.Fatalf("auto without WAYLAND_DISPLAY = %q", got)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "csdwin.yaml")
	if err := os.WriteFile(path, []byte("backend: x11\npadding: 30\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(&Options{Config: path, Backend: "wayland", StatusAddr: ":9000"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != config.BackendWayland || cfg.StatusAddr != ":9000" || cfg.Padding != 30 {
		t.Fatalf("config = %+v", cfg)
	}

	if _, err := LoadConfig(&Options{Config: path, Backend: "gtk"}); err == nil {
		t.Fatalf("expected invalid backend override to fail")
	}
}
