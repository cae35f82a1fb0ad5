package bootstrap_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artpar/ritan/bootstrap"
	"github.com/artpar/ritan/config"
	"github.com/artpar/ritan/domain/quota"
	"github.com/rs/zerolog"
)

const testConfig = `
database:
  dsn: %DSN%
auth:
  session_secret: 0123456789abcdef0123456789abcdef
billing:
  payment_secret: whsec_test_secret
admission:
  store: sqlite
  free: %FREE%
usage:
  flush_interval: 50ms
metrics:
  enabled: true
engines:
  scrape:
    mode: http
    url: %UPSTREAM%
`

func writeConfig(t *testing.T, dir, upstream string, free int) string {
	t.Helper()
	body := strings.NewReplacer(
		"%DSN%", filepath.Join(dir, "ritan.db"),
		"%UPSTREAM%", upstream,
		"%FREE%", strconv.Itoa(free),
	).Replace(testConfig)
	path := filepath.Join(dir, "ritan.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func newApp(t *testing.T, upstream string) (*bootstrap.App, string) {
	t.Helper()
	dir := t.TempDir()
	path := writeConfig(t, dir, upstream, 3)

	logger := zerolog.Nop()
	holder, err := config.NewHolder(path, logger)
	if err != nil {
		t.Fatalf("NewHolder() error = %v", err)
	}
	a, err := bootstrap.New(holder, bootstrap.Options{Version: "test", Logger: &logger})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a, dir
}

func do(t *testing.T, h http.Handler, method, path, authz, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBootstrap_EndToEnd(t *testing.T) {
	var upstreamCalls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"markdown":"# hello"}`))
	}))
	defer upstream.Close()

	a, _ := newApp(t, upstream.URL)
	defer a.Shutdown()
	h := a.HTTPServer.Handler

	if a.Sessions == nil {
		t.Fatal("expected session service")
	}
	token, _, err := a.Sessions.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	session := "Bearer " + token

	rec := do(t, h, http.MethodPost, "/keys", session, `{"name":"e2e"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create key = %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data struct {
			SecretKey string `json:"secret_key"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)
	bearer := "Bearer " + created.Data.SecretKey

	rec = do(t, h, http.MethodPost, "/v1/scrape", bearer, `{"url":"https://example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape = %d: %s", rec.Code, rec.Body.String())
	}
	if got := upstreamCalls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}

	rec = do(t, h, http.MethodPost, "/v1/qr", bearer, `{"text":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("qr = %d: %s", rec.Code, rec.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := a.Usage.Count(ctx, "user-1")
	for i := 0; i < 50 && err == nil && n < 2; i++ {
		time.Sleep(100 * time.Millisecond)
		n, err = a.Usage.Count(ctx, "user-1")
	}
	if err != nil || n != 2 {
		t.Errorf("usage count = %d (err %v), want 2", n, err)
	}

	rec = do(t, h, http.MethodGet, "/metrics", "", "")
	if !strings.Contains(rec.Body.String(), `ritan_engine_calls_total{engine="scrape",outcome="ok"} 1`) {
		t.Errorf("engine call metric missing:\n%s", rec.Body.String())
	}
}

func TestBootstrap_AdmissionCeilingFromConfig(t *testing.T) {
	a, _ := newApp(t, "http://127.0.0.1:1")
	defer a.Shutdown()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d, err := a.Admission.CheckAndConsume(ctx, "user-1")
		if err != nil || !d.Allowed {
			t.Fatalf("call %d: allowed = %v err = %v", i, d.Allowed, err)
		}
	}
	d, err := a.Admission.CheckAndConsume(ctx, "user-1")
	if err != nil || d.Allowed {
		t.Errorf("4th call allowed = %v err = %v, want denied", d.Allowed, err)
	}
}

func TestBootstrap_ReloadUpdatesCeilings(t *testing.T) {
	a, dir := newApp(t, "http://127.0.0.1:1")
	defer a.Shutdown()

	writeConfig(t, dir, "http://127.0.0.1:1", 7)
	if err := a.Config.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if got := a.Admission.Ceilings()[quota.TierFree]; got != 7 {
		t.Errorf("free ceiling = %d, want 7", got)
	}
}

func TestBootstrap_DatabaseMigration(t *testing.T) {
	a, _ := newApp(t, "http://127.0.0.1:1")
	defer a.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, table := range []string{"api_keys", "tenants", "usage_records", "admission_counters"} {
		var count int
		if err := a.DB.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("query %s: %v", table, err)
		}
	}
}

func TestBootstrap_GracefulShutdown(t *testing.T) {
	a, _ := newApp(t, "http://127.0.0.1:1")

	if err := a.Shutdown(); err != nil {
		t.Errorf("shutdown error: %v", err)
	}

	if _, err := a.DB.DB.Query("SELECT 1"); err == nil {
		t.Error("expected error querying closed database")
	}
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	cfg.Database.DSN = filepath.Join(dir, "ritan.db")
	cfg.Engines["scrape"] = config.EngineConfig{Mode: "http", URL: "ftp://nope"}

	logger := zerolog.Nop()
	if _, err := bootstrap.New(config.NewStaticHolder(cfg, logger), bootstrap.Options{Logger: &logger}); err == nil {
		t.Error("expected engine url to be rejected")
	}
}
