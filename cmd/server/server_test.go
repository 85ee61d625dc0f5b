package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clawoffice.ai/internal/sim/layout"
	"clawoffice.ai/internal/sim/office"
	"clawoffice.ai/internal/sim/tuning"
)

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5555": true,
		"[::1]:5555":     true,
		"127.0.0.1":      true,
		"10.0.0.4:80":    false,
		"example.com:80": false,
		"":               false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", addr, got, want)
		}
	}
}

func TestLoopbackOnlyRejectsRemote(t *testing.T) {
	h := loopbackOnly(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "192.168.1.9:4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d", rec.Code)
	}

	req.RemoteAddr = "127.0.0.1:4000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("loopback status=%d", rec.Code)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("OFFICE_TEST_BOOL", "true")
	t.Setenv("OFFICE_TEST_BAD_BOOL", "maybe")
	t.Setenv("OFFICE_TEST_INT", "12")
	t.Setenv("OFFICE_TEST_NEG_INT", "-3")

	if !envBool("OFFICE_TEST_BOOL", false) {
		t.Fatalf("envBool true")
	}
	if !envBool("OFFICE_TEST_BAD_BOOL", true) {
		t.Fatalf("invalid bool should keep the default")
	}
	if envBool("OFFICE_TEST_UNSET", false) {
		t.Fatalf("unset bool should keep the default")
	}
	if got := envInt("OFFICE_TEST_INT", 2); got != 12 {
		t.Fatalf("envInt=%d", got)
	}
	if got := envInt("OFFICE_TEST_NEG_INT", 2); got != 2 {
		t.Fatalf("non-positive int should keep the default, got %d", got)
	}
}

func TestOpenRuntimeIndexBackends(t *testing.T) {
	dir := t.TempDir()

	idx, err := openRuntimeIndex(dir, true)
	if err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}

	t.Setenv("OFFICE_INDEX_BACKEND", "off")
	idx, err = openRuntimeIndex(dir, false)
	if err != nil || idx != nil {
		t.Fatalf("off: idx=%v err=%v", idx, err)
	}

	t.Setenv("OFFICE_INDEX_BACKEND", "postgres")
	if _, err := openRuntimeIndex(dir, false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
}

func TestLoadSeedRoutesWithoutSources(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	rs, fromStore := loadSeedRoutes(context.Background(), &storageRuntime{}, "  ", logger)
	if rs != nil || fromStore {
		t.Fatalf("expected generated catalog, got %d routes fromStore=%v", len(rs), fromStore)
	}
}

func TestMetricsHandler(t *testing.T) {
	off, err := office.New(office.Config{
		Layout: layout.Defaults(),
		Tuning: tuning.Defaults(),
		Logger: log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("office.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = off.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("office did not stop")
		}
	}()

	rec := httptest.NewRecorder()
	metricsHandler(metricsSources{office: off, mirror: &storageRuntime{}})(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE clawoffice_tick gauge",
		"clawoffice_dispatch_queue_length 0",
		"clawoffice_dispatch_processing 0",
		`clawoffice_presence_agents{state="present"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "clawoffice_mirror_") {
		t.Fatalf("mirror metrics written while mirror disabled:\n%s", body)
	}
}
