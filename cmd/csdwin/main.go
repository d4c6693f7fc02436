package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ItsNotGoodName/csdwin/internal/build"
	"github.com/ItsNotGoodName/csdwin/internal/bus"
	"github.com/ItsNotGoodName/csdwin/internal/config"
	"github.com/ItsNotGoodName/csdwin/internal/csd"
	"github.com/ItsNotGoodName/csdwin/internal/status"
	"github.com/ItsNotGoodName/csdwin/internal/wayland"
	"github.com/ItsNotGoodName/csdwin/internal/xcursor"
	"github.com/ItsNotGoodName/csdwin/internal/xwm"
	"github.com/ItsNotGoodName/csdwin/pkg/sutureext"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/k0kubun/pp"
	"github.com/phsym/console-slog"
	"github.com/thejerf/suture/v4"
)

type Options struct {
	Debug      bool   `doc:"enable debug"`
	Config     string `doc:"config file" default:".csdwin.yaml"`
	Backend    string `doc:"display backend overriding the config file (auto, wayland, x11)"`
	StatusAddr string `doc:"address of the status API overriding the config file"`
}

func main() {
	godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		if options.Debug {
			InitLogger(slog.LevelDebug)
		} else {
			InitLogger(slog.LevelInfo)
		}

		OnServe(hooks, func(ctx context.Context) error {
			cfg, err := LoadConfig(options)
			if err != nil {
				return err
			}
			if options.Debug {
				pp.Fprintln(os.Stderr, cfg)
			}

			return Run(ctx, cfg)
		})
	})

	cli.Root().Version = build.Current.Version

	cli.Run()
}

func InitLogger(level slog.Level) {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level: level,
	})))
}

func OnServe(hooks humacli.Hooks, serveFn func(ctx context.Context) error) {
	stopC := make(chan struct{})
	hooks.OnStart(func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errC := make(chan error, 1)

		go func() { errC <- serveFn(ctx) }()

		select {
		case <-stopC:
			cancel()
		case err := <-errC:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Fatal(err)
			}
			return
		}

		<-errC
		<-stopC
	})
	hooks.OnStop(func() {
		stopC <- struct{}{}
		stopC <- struct{}{}
	})
}

// LoadConfig reads the config file and applies command line overrides.
func LoadConfig(options *Options) (config.Config, error) {
	configFilePath, err := filepath.Abs(options.Config)
	if err != nil {
		return config.Config{}, err
	}

	store, err := config.NewStore(config.NewDriver(configFilePath))
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := store.GetConfig()
	if err != nil {
		return config.Config{}, err
	}

	if options.Backend != "" {
		cfg.Backend = options.Backend
	}
	if options.StatusAddr != "" {
		cfg.StatusAddr = options.StatusAddr
	}

	return config.Normalize(cfg)
}

// Run supervises the display and, when configured, the status API until the
// window closes.
func Run(ctx context.Context, cfg config.Config) error {
	hub := bus.NewHub[csd.Snapshot]()
	super := sutureext.NewSimple("csdwin", slog.Default())

	var displayErr error
	sutureext.Add(super, sutureext.NewServiceFunc("display", func(ctx context.Context) error {
		if err := RunDisplay(ctx, cfg, hub); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			displayErr = err
		}
		return suture.ErrTerminateSupervisorTree
	}))

	if cfg.StatusAddr != "" {
		log := slog.With("service", "status")
		sutureext.Add(super, status.Server{
			Addr:    cfg.StatusAddr,
			Handler: status.NewRouter(log, hub),
			Log:     log,
		})
	}

	err := super.Serve(ctx)
	if displayErr != nil {
		return displayErr
	}
	if errors.Is(err, suture.ErrTerminateSupervisorTree) {
		return nil
	}
	return err
}

type backend interface {
	csd.Display
	csd.EventSource
	Close() error
}

// ResolveBackend picks Wayland for auto when WAYLAND_DISPLAY is set.
func ResolveBackend(name string) string {
	if name != config.BackendAuto {
		return name
	}
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return config.BackendWayland
	}
	return config.BackendX11
}

func connect(cfg config.Config, log *slog.Logger) (backend, error) {
	switch name := ResolveBackend(cfg.Backend); name {
	case config.BackendWayland:
		theme := xcursor.ThemeFromEnv()
		if cfg.CursorTheme != "" {
			theme.Name = cfg.CursorTheme
		}
		return wayland.Connect(wayland.Options{
			CursorTheme: theme,
			CursorSize:  cfg.CursorSize,
			Log:         log,
		})
	case config.BackendX11:
		return xwm.Connect(xwm.Options{
			Margin: cfg.Padding / 2,
			Log:    log,
		})
	default:
		return nil, fmt.Errorf("%w: backend %q", config.ErrInvalidConfig, name)
	}
}

// RunDisplay shows one window and returns nil once it is closed.
func RunDisplay(ctx context.Context, cfg config.Config, hub *bus.Hub[csd.Snapshot]) (err error) {
	log := slog.With("service", "display")

	opts, err := cfg.WindowOptions()
	if err != nil {
		return err
	}

	b, err := connect(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, b.Close()) }()

	g := csd.NewGlobals(b)
	g.Log = log
	defer func() { err = errors.Join(err, g.Pool.Close()) }()

	window, err := csd.NewWindow(g, opts)
	if err != nil {
		return err
	}
	defer func() {
		if derr := window.Destroy(); derr != nil {
			log.Warn("Failed to destroy window", "error", derr)
		}
		if ferr := b.Flush(); ferr != nil {
			log.Debug("Failed to flush after destroy", "error", ferr)
		}
	}()

	log.Info("Window created", "window-id", window.ID(), "backend", ResolveBackend(cfg.Backend))

	return csd.Loop{
		Source:   b,
		Display:  b,
		Window:   window,
		OnUpdate: hub.Broadcast,
	}.Run(ctx)
}
