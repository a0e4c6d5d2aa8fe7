package playground

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/binder"
	perrors "github.com/Maharshi-24/Documentation-PostalPincodes/internal/errors"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/executor"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/session"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/snippet"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/state"
)

// apiServer answers every request with a small JSON document and records
// the paths it saw.
type apiServer struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	a := &apiServer{}
	a.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.paths = append(a.paths, r.URL.RequestURI())
		a.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pincode":"110001","office":"New Delhi GPO"}`))
	}))
	t.Cleanup(a.Close)
	return a
}

func (a *apiServer) seen() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

func newPlayground(t *testing.T, opts ...Option) *Playground {
	t.Helper()
	base := []Option{WithLogger(logger.Nop()), WithRateLimit(0, 0)}
	p, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

// =============================================================================
// New Tests
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	p := newPlayground(t)

	if got := len(p.Endpoints()); got != 10 {
		t.Errorf("len(Endpoints()) = %d, want 10", got)
	}
	if got := p.Session().Environment(); got != "local" {
		t.Errorf("Environment() = %s, want local", got)
	}
	if got := p.Environments().Default(); got != "local" {
		t.Errorf("Default() = %s, want local", got)
	}
	if p.Metrics() == nil {
		t.Error("Metrics() returned nil")
	}
	if _, ok := p.store.(*state.MemoryStore); !ok {
		t.Errorf("store = %T, want *state.MemoryStore", p.store)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"unknown default env", WithDefaultEnvironment("mars")},
		{"bad base url", WithEnvironment("broken", "::")},
		{"watch without file", WithRegistryFile("", true)},
		{"zero timeout", WithTimeout(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(WithLogger(logger.Nop()), tt.opt); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestNew_RegistryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "endpoints.yaml")
	if err := os.WriteFile(path, registry.Embedded(), 0644); err != nil {
		t.Fatal(err)
	}

	p := newPlayground(t, WithRegistryFile(path, false))
	if got := len(p.Endpoints()); got != 10 {
		t.Errorf("len(Endpoints()) = %d, want 10", got)
	}

	if _, err := New(WithLogger(logger.Nop()), WithRegistryFile(filepath.Join(dir, "missing.yaml"), false)); err == nil {
		t.Error("New() with a missing registry file should fail")
	}
}

func TestNew_WatchedRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	if err := os.WriteFile(path, registry.Embedded(), 0644); err != nil {
		t.Fatal(err)
	}

	p := newPlayground(t, WithRegistryFile(path, true))
	if p.watcher == nil {
		t.Fatal("watcher not created")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func TestPlayground_ReloadRemovesSelectedEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	two := `endpoints:
  - {key: states, method: GET, path: /states}
  - {key: districts, method: GET, path: "/districts/{state}", params: [{name: state, in: path}]}
`
	if err := os.WriteFile(path, []byte(two), 0644); err != nil {
		t.Fatal(err)
	}

	p := newPlayground(t, WithRegistryFile(path, true))
	p.Session().SelectEndpoint("districts")
	p.Session().SetValue("state", "Gujarat")

	one := "endpoints:\n  - {key: states, method: GET, path: /states}\n"
	if err := os.WriteFile(path, []byte(one), 0644); err != nil {
		t.Fatal(err)
	}
	if err := p.watcher.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if got := p.Session().Endpoint(); got != "states" {
		t.Errorf("Endpoint() = %s, want states", got)
	}
	if v, ok := p.Session().Value("state"); ok && v != "" {
		t.Errorf("values survived the switch: state=%q", v)
	}

	// A reload that keeps the selection leaves it alone.
	if err := os.WriteFile(path, []byte(two), 0644); err != nil {
		t.Fatal(err)
	}
	if err := p.watcher.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := p.Session().Endpoint(); got != "states" {
		t.Errorf("Endpoint() = %s, want states", got)
	}
}

// =============================================================================
// State Persistence Tests
// =============================================================================

func TestPlayground_EnvironmentPersists(t *testing.T) {
	for _, name := range []string{"state.db", "state.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			p, err := New(WithLogger(logger.Nop()), WithStateFile(path))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if err := p.SetEnvironment("vercel"); err != nil {
				t.Fatalf("SetEnvironment() error = %v", err)
			}
			if err := p.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			p2 := newPlayground(t, WithStateFile(path))
			if got := p2.Session().Environment(); got != "vercel" {
				t.Errorf("Environment() after restart = %s, want vercel", got)
			}
		})
	}
}

func TestPlayground_SetEnvironmentUnknown(t *testing.T) {
	p := newPlayground(t)
	err := p.SetEnvironment("mars")
	if !perrors.IsNotFound(err) {
		t.Errorf("SetEnvironment(mars) error = %v, want not found", err)
	}
	if got := p.Session().Environment(); got != "local" {
		t.Errorf("Environment() = %s, want local", got)
	}
}

func TestPlayground_ExternalStoreNotClosed(t *testing.T) {
	store, err := state.NewBoltStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	p := newPlayground(t, WithStore(store))
	if err := p.SetEnvironment("vercel"); err != nil {
		t.Fatalf("SetEnvironment() error = %v", err)
	}
	p.Close()

	got, ok, err := store.Get(session.EnvKey)
	if err != nil || !ok || got != "vercel" {
		t.Errorf("store.Get(%s) = %q, %v, %v; want vercel", session.EnvKey, got, ok, err)
	}
}

// =============================================================================
// Snippet Tests
// =============================================================================

func TestPlayground_EnvironmentSwitch(t *testing.T) {
	alpha := newAPIServer(t)
	beta := newAPIServer(t)
	p := newPlayground(t,
		WithEnvironment("alpha", alpha.URL+"/api/v1"),
		WithEnvironment("beta", beta.URL+"/api/v1"),
		WithDefaultEnvironment("alpha"),
	)
	values := binder.Values{"code": "400001"}

	before, err := p.Snippet("validate", "", snippet.Curl, values)
	if err != nil {
		t.Fatal(err)
	}
	wantBefore := "curl --request GET \\\n  --url '" + alpha.URL + "/api/v1/validate/400001'"
	if before != wantBefore {
		t.Fatalf("Snippet() before switch = %q, want %q", before, wantBefore)
	}

	if err := p.SetEnvironment("beta"); err != nil {
		t.Fatalf("SetEnvironment() error = %v", err)
	}

	after, err := p.Snippet("validate", "", snippet.Curl, values)
	if err != nil {
		t.Fatal(err)
	}
	if want := "curl --request GET \\\n  --url '" + beta.URL + "/api/v1/validate/400001'"; after != want {
		t.Errorf("Snippet() after switch = %q, want %q", after, want)
	}
	if before != wantBefore {
		t.Errorf("earlier snippet changed to %q", before)
	}

	r, err := p.Request("validate", "", values)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(r.URL, beta.URL) {
		t.Errorf("Request().URL = %s, want it on %s", r.URL, beta.URL)
	}

	if _, err := p.Call(context.Background(), "validate", "", values); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got := alpha.seen(); len(got) != 0 {
		t.Errorf("alpha saw %v after the switch, want nothing", got)
	}
	if got := beta.seen(); len(got) != 1 || got[0] != "/api/v1/validate/400001" {
		t.Errorf("beta saw %v, want [/api/v1/validate/400001]", got)
	}
}

func TestPlayground_Snippet(t *testing.T) {
	p := newPlayground(t)

	tests := []struct {
		name   string
		key    string
		env    string
		lang   snippet.Language
		values binder.ValueSource
		want   string
	}{
		{
			name:   "examples on active env",
			key:    "pincode",
			lang:   snippet.Curl,
			values: binder.None,
			want:   "curl --request GET \\\n  --url 'http://localhost:3000/api/v1/pincode/110001'",
		},
		{
			name:   "live value on explicit env",
			key:    "validate",
			env:    "vercel",
			lang:   snippet.Curl,
			values: binder.Values{"code": "400001"},
			want:   "curl --request GET \\\n  --url 'https://postal-pincode-api.vercel.app/api/v1/validate/400001'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Snippet(tt.key, tt.env, tt.lang, tt.values)
			if err != nil {
				t.Fatalf("Snippet() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Snippet() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := p.Metrics().Snapshot().SnippetLanguages["curl"]; got != 2 {
		t.Errorf("SnippetLanguages[curl] = %d, want 2", got)
	}
}

func TestPlayground_SnippetErrors(t *testing.T) {
	p := newPlayground(t)

	if _, err := p.Snippet("nope", "", snippet.Curl, binder.None); !perrors.IsNotFound(err) {
		t.Errorf("unknown endpoint error = %v, want not found", err)
	}
	if _, err := p.Snippet("pincode", "mars", snippet.Curl, binder.None); !perrors.IsNotFound(err) {
		t.Errorf("unknown env error = %v, want not found", err)
	}
	if _, err := p.Snippet("pincode", "", snippet.Language("cobol"), binder.None); err == nil {
		t.Error("unknown language should fail")
	}
}

// =============================================================================
// Call Tests
// =============================================================================

func TestPlayground_Call(t *testing.T) {
	api := newAPIServer(t)
	p := newPlayground(t, WithEnvironment("test", api.URL), WithDefaultEnvironment("test"))

	out, err := p.Call(context.Background(), "pincode", "", binder.Values{"code": "400001"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !out.OK() {
		t.Fatalf("Kind = %v, want success", out.Kind)
	}
	if out.URL != api.URL+"/pincode/400001" {
		t.Errorf("URL = %s, want %s/pincode/400001", out.URL, api.URL)
	}
	if !strings.Contains(out.Markup, `class="key"`) {
		t.Errorf("Markup = %s, want highlighted JSON", out.Markup)
	}
	if got := api.seen(); len(got) != 1 || got[0] != "/pincode/400001" {
		t.Errorf("server saw %v, want [/pincode/400001]", got)
	}
}

func TestPlayground_CallSuppressed(t *testing.T) {
	api := newAPIServer(t)
	p := newPlayground(t, WithEnvironment("test", api.URL), WithDefaultEnvironment("test"))

	out, err := p.Call(context.Background(), "autocomplete", "", binder.None)
	if !perrors.IsUnresolved(err) {
		t.Fatalf("Call() error = %v, want unresolved", err)
	}
	if out != nil {
		t.Errorf("Call() outcome = %+v, want nil", out)
	}
	if got := api.seen(); len(got) != 0 {
		t.Errorf("server saw %v, want no requests", got)
	}
	if got := p.Metrics().Snapshot().TriggersSuppressed; got != 1 {
		t.Errorf("TriggersSuppressed = %d, want 1", got)
	}
}

func TestPlayground_CallNetworkError(t *testing.T) {
	api := newAPIServer(t)
	url := api.URL
	api.Close()

	p := newPlayground(t, WithEnvironment("gone", url), WithTimeout(time.Second))
	out, err := p.Call(context.Background(), "states", "gone", binder.None)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if out.Kind != executor.NetworkError {
		t.Errorf("Kind = %v, want network_error", out.Kind)
	}
	if out.StatusLine() != "ERROR" {
		t.Errorf("StatusLine() = %s, want ERROR", out.StatusLine())
	}
}

// =============================================================================
// Scheduler Tests
// =============================================================================

func TestPlayground_Scheduler(t *testing.T) {
	api := newAPIServer(t)
	p := newPlayground(t, WithEnvironment("test", api.URL), WithDefaultEnvironment("test"))

	outcomes := make(chan *executor.Outcome, 4)
	sched := p.Scheduler(func(o *executor.Outcome) { outcomes <- o })
	defer sched.Close()

	d, err := p.Endpoint("autocomplete")
	if err != nil {
		t.Fatal(err)
	}
	for _, prefix := range []string{"3", "38", "380"} {
		sched.Trigger(d, binder.Values{"prefix": prefix})
	}

	select {
	case out := <-outcomes:
		if !strings.HasSuffix(out.URL, "/autocomplete/380?limit=5") {
			t.Errorf("URL = %s, want /autocomplete/380?limit=5", out.URL)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no outcome delivered")
	}

	time.Sleep(100 * time.Millisecond)
	if got := api.seen(); len(got) != 1 {
		t.Errorf("server saw %v, want one coalesced request", got)
	}
}

// =============================================================================
// OpenAPI / Server Tests
// =============================================================================

func TestPlayground_OpenAPI(t *testing.T) {
	p := newPlayground(t, WithDefaultEnvironment("vercel"))
	doc := p.OpenAPI()

	if doc.Paths.Len() == 0 {
		t.Fatal("no paths")
	}
	if got := doc.Servers[0].URL; got != "https://postal-pincode-api.vercel.app/api/v1" {
		t.Errorf("Servers[0] = %s, want the vercel base URL", got)
	}
}

func TestPlayground_NewServer(t *testing.T) {
	p := newPlayground(t)
	srv, err := p.NewServer()
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/endpoints", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/endpoints = %d, want 200", rec.Code)
	}
}
