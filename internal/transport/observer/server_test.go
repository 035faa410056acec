package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"hexopolis.gg/internal/protocol"
	"hexopolis.gg/internal/sim/engine"
	"hexopolis.gg/internal/sim/tuning"
)

func testServer(t *testing.T) (*httptest.Server, *engine.Engine, int64) {
	t.Helper()
	tune := tuning.Defaults()
	now := tune.Calendar.StartUnix + tune.Calendar.WeekLengthS
	eng := engine.New(tune, "ADMIN")
	if err := eng.Initialize("ADMIN", now); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	go eng.Run()
	t.Cleanup(eng.Stop)

	srv := NewServer(eng, zap.NewNop().Sugar())
	srv.SetClock(func() int64 { return now })
	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, eng, now
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func TestTileEndpoint(t *testing.T) {
	ts, _, _ := testServer(t)

	var v engine.TileView
	if code := getJSON(t, ts.URL+"/v1/tile?x=0&y=0", &v); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if v.Owner != "ADMIN" || v.Price == 0 {
		t.Fatalf("genesis tile: %+v", v)
	}

	var e map[string]string
	if code := getJSON(t, ts.URL+"/v1/tile?x=9&y=9", &e); code != http.StatusNotFound {
		t.Fatalf("unknown tile status: %d", code)
	}
	if e["code"] != protocol.ErrNotFound {
		t.Fatalf("unknown tile code: %v", e)
	}

	if code := getJSON(t, ts.URL+"/v1/tile?x=a&y=0", &e); code != http.StatusBadRequest {
		t.Fatalf("bad coord status: %d", code)
	}
}

func TestMarketStatsAndBought(t *testing.T) {
	ts, _, _ := testServer(t)

	var mv engine.MarketView
	getJSON(t, ts.URL+"/v1/market", &mv)
	if mv.Resources[0].Price == 0 || mv.Resources[0].Symbol == "" {
		t.Fatalf("market: %+v", mv)
	}

	var sv engine.StatsView
	getJSON(t, ts.URL+"/v1/stats", &sv)
	if sv.Tiles == 0 || sv.TilesBought != 1 {
		t.Fatalf("stats: %+v", sv)
	}

	var bought struct {
		Offset  int      `json:"offset"`
		TileIDs []string `json:"tile_ids"`
	}
	getJSON(t, ts.URL+"/v1/bought?offset=0&limit=10", &bought)
	if len(bought.TileIDs) != 1 {
		t.Fatalf("bought: %+v", bought)
	}
}

func TestCostEndpoint(t *testing.T) {
	ts, _, _ := testServer(t)

	var out struct {
		Cost [3]uint64 `json:"cost"`
	}
	if code := getJSON(t, ts.URL+"/v1/cost?x=0&y=0&blocks=0,1", &out); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if out.Cost[0] == 0 || out.Cost[1] == 0 {
		t.Fatalf("cost: %+v", out)
	}

	var e map[string]string
	if code := getJSON(t, ts.URL+"/v1/cost?x=0&y=0", &e); code != http.StatusBadRequest {
		t.Fatalf("missing blocks status: %d", code)
	}
}

func TestDigestIsLoopbackOnly(t *testing.T) {
	ts, eng, _ := testServer(t)

	// httptest connects over 127.0.0.1, so the loopback guard passes here.
	var d map[string]string
	if code := getJSON(t, ts.URL+"/v1/digest", &d); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if d["digest"] != eng.Digest() {
		t.Fatalf("digest mismatch: %v", d)
	}
}
