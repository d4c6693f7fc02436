// Package status serves a read-only HTTP view of the running window.
package status

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ItsNotGoodName/csdwin/internal/build"
	"github.com/ItsNotGoodName/csdwin/internal/bus"
	"github.com/ItsNotGoodName/csdwin/internal/core"
	"github.com/ItsNotGoodName/csdwin/internal/csd"
	"github.com/ItsNotGoodName/csdwin/pkg/chiext"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type WindowOutput struct {
	Body csd.Snapshot
}

type VersionOutput struct {
	Body build.Build
}

// Register adds the status operations to api.
func Register(api huma.API, hub *bus.Hub[csd.Snapshot]) {
	huma.Register(api, huma.Operation{
		OperationID: "get-window",
		Method:      http.MethodGet,
		Path:        "/api/window",
		Summary:     "Get window",
		Description: "Latest state of the window after its last handled event.",
	}, func(ctx context.Context, input *struct{}) (*WindowOutput, error) {
		snapshot, ok := hub.Latest()
		if !ok {
			return nil, huma.Error503ServiceUnavailable("window has not handled any events yet")
		}
		return &WindowOutput{Body: snapshot}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Get version",
	}, func(ctx context.Context, input *struct{}) (*VersionOutput, error) {
		return &VersionOutput{Body: build.Current}, nil
	})

	sse.Register(api, huma.Operation{
		OperationID: "stream-window",
		Method:      http.MethodGet,
		Path:        "/api/window/events",
		Summary:     "Stream window",
	}, map[string]any{
		"snapshot": csd.Snapshot{},
	}, func(ctx context.Context, input *struct{}, send sse.Sender) {
		snapshotC, unsubscribe := hub.Subscribe()
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case snapshot := <-snapshotC:
				if err := send.Data(snapshot); err != nil {
					return
				}
			}
		}
	})
}

func NewRouter(log *slog.Logger, hub *bus.Hub[csd.Snapshot]) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chiext.Logger(log))
	r.Use(middleware.Recoverer)

	api := humachi.New(r, huma.DefaultConfig("csdwin", build.Current.Version))
	Register(api, hub)

	return r
}

// Server is the "status" service.
type Server struct {
	Addr    string
	Handler http.Handler
	Log     *slog.Logger
}

func (s Server) String() string {
	return "status.Server"
}

func (s Server) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errC := make(chan error, 1)
	go func() { errC <- server.ListenAndServe() }()
	s.Log.Info("Serving status API", "url", core.HTTPURL(s.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
