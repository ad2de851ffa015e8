package internal

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/starford/leveler/internal/chat"
	"github.com/starford/leveler/internal/sse"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "leveler.db")
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testHandler(t *testing.T, cfg *Config) (http.Handler, *services) {
	t.Helper()
	svc, err := openServices(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Close)
	broker := sse.NewBroker()
	t.Cleanup(broker.Close)
	bot := chat.NewBot(svc.engine, broadcastNotifier(broker, quietLogger()))
	return newHTTPHandler(cfg, svc, bot, broker), svc
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := testHandler(t, testConfig(t))

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, w.Code)
		}
	}
}

func TestReadyReportsClosedLedger(t *testing.T) {
	h, svc := testHandler(t, testConfig(t))
	_ = svc.ledger.Close()

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready with closed ledger = %d, want 503", w.Code)
	}
}

func TestMessageFlowAndMetrics(t *testing.T) {
	h, _ := testHandler(t, testConfig(t))

	body := `{"community_id":"g1","channel_id":"c1","user_id":"u1","content":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("post message = %d, body = %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/communities/g1/members/u1/rank", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"xp":10`) {
		t.Errorf("rank = %d %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `leveler_messages_total{outcome="awarded"}`) {
		t.Error("metrics missing awarded message counter")
	}
}

func TestCacheBackedLeaderboard(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.URL = "redis://" + s.Addr()

	h, svc := testHandler(t, cfg)
	if svc.cache == nil {
		t.Fatal("cache should be connected")
	}

	for _, user := range []string{"b", "a", "a"} {
		body := `{"community_id":"g1","user_id":"` + user + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/communities/g1/leaderboard", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	got := w.Body.String()
	if strings.Index(got, `"user_id":"a"`) > strings.Index(got, `"user_id":"b"`) {
		t.Errorf("leaderboard order wrong: %s", got)
	}
	if !s.Exists("leveler:board:g1") {
		t.Error("cache board was not written")
	}
}

func TestReadyReportsStaleCache(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.URL = "redis://" + s.Addr()
	h, _ := testHandler(t, cfg)

	ready := func() string {
		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Body.String()
	}
	if got := ready(); !strings.Contains(got, `"cache":"ok"`) {
		t.Errorf("ready after startup rebuild = %s", got)
	}
	s.FlushAll()
	if got := ready(); !strings.Contains(got, `"cache":"stale"`) {
		t.Errorf("ready after flush = %s", got)
	}
}

func TestUnreachableRedisFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.URL = "redis://127.0.0.1:1"

	svc, err := openServices(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("unreachable redis should not be fatal: %v", err)
	}
	defer svc.Close()
	if svc.cache != nil {
		t.Error("cache should be nil when redis is unreachable")
	}
}

func TestRebuildCache(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := testConfig(t)

	// Seed the ledger without a cache.
	svc, err := openServices(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.engine.AwardXP(context.Background(), "g1", "u1", 60); err != nil {
		t.Fatal(err)
	}
	svc.Close()

	cfg.Redis.Enabled = true
	cfg.Redis.URL = "redis://" + s.Addr()
	if err := RebuildCache(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard)); err != nil {
		t.Fatal(err)
	}
	if !s.Exists("leveler:board:g1") {
		t.Error("rebuild did not populate the board")
	}
}

func TestRebuildCacheRequiresRedis(t *testing.T) {
	err := RebuildCache(context.Background(), WithConfig(testConfig(t)), WithLogOutput(io.Discard))
	if err == nil {
		t.Error("expected error with redis disabled")
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("expected error without config")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.HTTP.Port = freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, WithConfig(cfg), WithLogOutput(io.Discard)) }()

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		resp, err := http.Get("http://127.0.0.1" + cfg.App.HTTP.Address() + "/health/live")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, "server did not become live")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestPrintLevels(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintLevels(&buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 36 {
		t.Fatalf("lines = %d, want header + 35", len(lines))
	}
	if !strings.Contains(lines[35], "2500000") {
		t.Errorf("last line = %q", lines[35])
	}
}
