package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/executor"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/pkg/playground"
)

// =============================================================================
// parseSets Tests
// =============================================================================

func TestParseSets(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{"empty", nil, map[string]string{}, false},
		{"single", []string{"code=110001"}, map[string]string{"code": "110001"}, false},
		{"value with equals", []string{"q=a=b"}, map[string]string{"q": "a=b"}, false},
		{"empty value", []string{"q="}, map[string]string{"q": ""}, false},
		{"later wins", []string{"code=1", "code=2"}, map[string]string{"code": "2"}, false},
		{"no equals", []string{"code"}, nil, true},
		{"no name", []string{"=1"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSets(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSets() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseSets() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("parseSets()[%s] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

// =============================================================================
// printOutcome Tests
// =============================================================================

func TestPrintOutcome(t *testing.T) {
	success := &executor.Outcome{
		Kind:       executor.Success,
		Method:     "GET",
		URL:        "http://api.test/states",
		StatusCode: 200,
		StatusText: "OK",
		Body:       []byte(`{"states":["Gujarat"]}`),
		JSON:       map[string]any{"states": []any{"Gujarat"}},
	}

	tests := []struct {
		name    string
		out     *executor.Outcome
		raw     bool
		want    []string
		notWant string
	}{
		{
			name:    "pretty json without colour",
			out:     success,
			want:    []string{"GET http://api.test/states", "200 OK (0ms)", "\"states\": [\n"},
			notWant: "\x1b[",
		},
		{
			name: "raw body",
			out:  success,
			raw:  true,
			want: []string{`{"states":["Gujarat"]}`},
		},
		{
			name: "non-json body",
			out: &executor.Outcome{
				Kind: executor.HTTPError, Method: "GET", URL: "http://api.test/x",
				StatusCode: 502, StatusText: "Bad Gateway", Body: []byte("upstream down"),
			},
			want: []string{"502 Bad Gateway", "upstream down"},
		},
		{
			name: "body cut off after the status",
			out: &executor.Outcome{
				Kind: executor.HTTPError, Method: "GET", URL: "http://api.test/x",
				StatusCode: 200, StatusText: "OK", Body: []byte(`{"pin`), Message: "unexpected EOF",
			},
			want: []string{"200 OK", "unexpected EOF"},
		},
		{
			name: "network error",
			out: &executor.Outcome{
				Kind: executor.NetworkError, Method: "GET", URL: "http://api.test/x",
				Message: "connection refused",
			},
			want: []string{"ERROR", "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printOutcome(&buf, tt.out, tt.raw)
			got := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output = %q, want it to contain %q", got, w)
				}
			}
			if tt.notWant != "" && strings.Contains(got, tt.notWant) {
				t.Errorf("output = %q, should not contain %q", got, tt.notWant)
			}
		})
	}
}

func TestColorEnabled_Buffer(t *testing.T) {
	if colorEnabled(&bytes.Buffer{}) {
		t.Error("colorEnabled(buffer) = true, want false")
	}
}

// =============================================================================
// config / endpoints Tests
// =============================================================================

func TestRunConfig_WritesEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pincodedocs.yaml")
	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&registryFile, "registry", "", "")
	t.Cleanup(func() { registryFile = "" })
	if err := cmd.Flags().Set("registry", "custom.yaml"); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runConfig(cmd, []string{path}); err != nil {
		t.Fatalf("runConfig() error = %v", err)
	}
	if !strings.Contains(out.String(), path) {
		t.Errorf("output = %q, want the written path", out.String())
	}

	loaded, err := playground.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Registry != "custom.yaml" {
		t.Errorf("Registry = %q, want custom.yaml", loaded.Registry)
	}
	if loaded.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want default :8080", loaded.Server.Addr)
	}
}

func TestRunEndpoints_ExportYAML(t *testing.T) {
	exportYAML = true
	t.Cleanup(func() { exportYAML = false })

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runEndpoints(cmd, nil); err != nil {
		t.Fatalf("runEndpoints() error = %v", err)
	}
	r, err := registry.Load(out.Bytes())
	if err != nil {
		t.Fatalf("exported YAML does not load: %v", err)
	}
	if r.Len() != registry.Default().Len() {
		t.Errorf("exported %d endpoints, want %d", r.Len(), registry.Default().Len())
	}
}

// =============================================================================
// try Tests
// =============================================================================

// pathLog records request paths seen by the test API.
type pathLog struct {
	mu    sync.Mutex
	paths []string
}

func (l *pathLog) add(p string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, p)
}

func (l *pathLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}

func newTryLoop(t *testing.T, key string) (*tryLoop, *bytes.Buffer, *pathLog) {
	t.Helper()
	paths := &pathLog{}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths.add(r.URL.RequestURI())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"valid":true}`))
	}))
	t.Cleanup(api.Close)

	p, err := playground.New(
		playground.WithLogger(logger.Nop()),
		playground.WithEnvironment("test", api.URL),
		playground.WithDefaultEnvironment("test"),
	)
	if err != nil {
		t.Fatalf("playground.New() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })

	d, err := p.Endpoint(key)
	if err != nil {
		t.Fatal(err)
	}
	p.Session().SelectEndpoint(d.Key)

	var buf bytes.Buffer
	return &tryLoop{p: p, d: d, out: &buf}, &buf, paths
}

func TestTryLoop_Regular(t *testing.T) {
	loop, buf, paths := newTryLoop(t, "validate")

	in := strings.NewReader("code=400001\nbogus=1\nnot a pair\n\n")
	if err := loop.run(context.Background(), in); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{
		"/validate/560001'",
		"/validate/400001'",
		`validate has no parameter "bogus"`,
		`expected name=value, got "not a pair"`,
		"Loading...",
		"200 OK",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if got := paths.get(); len(got) != 1 || got[0] != "/validate/400001" {
		t.Errorf("server saw %v, want [/validate/400001]", got)
	}
}

func TestTryLoop_AutoTriggerIgnoresEmptyLines(t *testing.T) {
	loop, buf, paths := newTryLoop(t, "autocomplete")

	if err := loop.run(context.Background(), strings.NewReader("\n\n")); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if strings.Contains(buf.String(), "Loading...") {
		t.Errorf("auto-trigger endpoint sent on an empty line:\n%s", buf.String())
	}
	if got := paths.get(); len(got) != 0 {
		t.Errorf("server saw %v, want no requests", got)
	}
}
