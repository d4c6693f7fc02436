package status

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ItsNotGoodName/csdwin/internal/bus"
	"github.com/ItsNotGoodName/csdwin/internal/csd"
	"github.com/danielgtaylor/huma/v2/humatest"
)

func TestGetWindow(t *testing.T) {
	_, api := humatest.New(t)
	hub := bus.NewHub[csd.Snapshot]()
	Register(api, hub)

	resp := api.Get("/api/window")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("before first event: status %d", resp.Code)
	}

	hub.Broadcast(csd.Snapshot{
		ID:      "abc",
		Phase:   "configured",
		Width:   400,
		Height:  300,
		States:  []string{"activated"},
		Corners: []csd.CornerSummary{{Orientation: "top-left", X: -20, Y: -20}},
	})

	resp = api.Get("/api/window")
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d: %s", resp.Code, resp.Body.String())
	}

	var got csd.Snapshot
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "abc" || got.Phase != "configured" || got.Width != 400 || len(got.Corners) != 1 || got.Corners[0].X != -20 {
		t.Fatalf("snapshot = %+v", got)
	}
}

func TestGetVersion(t *testing.T) {
	_, api := humatest.New(t)
	Register(api, bus.NewHub[csd.Snapshot]())

	resp := api.Get("/api/version")
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}

	var got struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Version != "dev" {
		t.Fatalf("version = %q", got.Version)
	}
}
