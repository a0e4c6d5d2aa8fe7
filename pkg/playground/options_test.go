package playground

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/metrics"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/state"
)

// Helper to create a bare playground for option testing
func newTestPlayground() *Playground {
	return &Playground{
		config: DefaultConfig(),
	}
}

// =============================================================================
// WithConfig Tests
// =============================================================================

func TestWithConfig(t *testing.T) {
	p := newTestPlayground()
	cfg := DefaultConfig()
	cfg.Server.Addr = ":9999"

	if err := WithConfig(cfg)(p); err != nil {
		t.Fatalf("WithConfig() error = %v", err)
	}
	if p.config.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %s, want :9999", p.config.Server.Addr)
	}

	cfg.Server.Addr = ":1"
	if p.config.Server.Addr != ":9999" {
		t.Error("WithConfig should copy the configuration")
	}
}

func TestWithConfig_Nil(t *testing.T) {
	p := newTestPlayground()
	if err := WithConfig(nil)(p); err == nil {
		t.Error("WithConfig(nil) should fail")
	}
}

// =============================================================================
// Environment Option Tests
// =============================================================================

func TestWithEnvironment(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		baseURL   string
		wantLen   int
		wantIndex int
	}{
		{"adds new", "staging", "https://staging.test/api/v1", 3, 2},
		{"replaces existing", "vercel", "https://mirror.test/api/v1", 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPlayground()
			if err := WithEnvironment(tt.env, tt.baseURL)(p); err != nil {
				t.Fatalf("WithEnvironment() error = %v", err)
			}
			if len(p.config.Environments) != tt.wantLen {
				t.Fatalf("len(Environments) = %d, want %d", len(p.config.Environments), tt.wantLen)
			}
			got := p.config.Environments[tt.wantIndex]
			if got.Name != tt.env || got.BaseURL != tt.baseURL {
				t.Errorf("Environments[%d] = %+v, want %s %s", tt.wantIndex, got, tt.env, tt.baseURL)
			}
		})
	}
}

func TestWithDefaultEnvironment(t *testing.T) {
	p := newTestPlayground()
	if err := WithDefaultEnvironment("vercel")(p); err != nil {
		t.Fatalf("WithDefaultEnvironment() error = %v", err)
	}
	if p.config.DefaultEnv != "vercel" {
		t.Errorf("DefaultEnv = %s, want vercel", p.config.DefaultEnv)
	}
}

// =============================================================================
// Registry Option Tests
// =============================================================================

func TestWithRegistry(t *testing.T) {
	p := newTestPlayground()
	src := registry.NewStatic(registry.Default())
	if err := WithRegistry(src)(p); err != nil {
		t.Fatalf("WithRegistry() error = %v", err)
	}
	if p.source != src {
		t.Error("source not set")
	}

	if err := WithRegistry(nil)(p); err == nil {
		t.Error("WithRegistry(nil) should fail")
	}
}

func TestWithRegistryFile(t *testing.T) {
	p := newTestPlayground()
	if err := WithRegistryFile("endpoints.yaml", true)(p); err != nil {
		t.Fatalf("WithRegistryFile() error = %v", err)
	}
	if p.config.Registry != "endpoints.yaml" || !p.config.Watch {
		t.Errorf("Registry/Watch = %s/%v, want endpoints.yaml/true", p.config.Registry, p.config.Watch)
	}
}

// =============================================================================
// Component Option Tests
// =============================================================================

func TestComponentOptions(t *testing.T) {
	p := newTestPlayground()
	var buf bytes.Buffer
	l := logger.New(logger.Config{Output: &buf})
	m := metrics.New()
	s := state.NewMemoryStore()
	c := &http.Client{}

	opts := []Option{WithLogger(l), WithMetrics(m), WithStore(s), WithHTTPClient(c)}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			t.Fatalf("option error = %v", err)
		}
	}

	if p.logger != l {
		t.Error("logger not set")
	}
	if p.metrics != m {
		t.Error("metrics not set")
	}
	if p.store != s {
		t.Error("store not set")
	}
	if p.httpClient != c {
		t.Error("http client not set")
	}
}

// =============================================================================
// Config Field Option Tests
// =============================================================================

func TestConfigFieldOptions(t *testing.T) {
	p := newTestPlayground()
	opts := []Option{
		WithStateFile("/tmp/state.db"),
		WithRateLimit(3, 2),
		WithTimeout(4 * time.Second),
		WithUserAgent("test-agent"),
		WithVerbose(true),
		WithDebug(true),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			t.Fatalf("option error = %v", err)
		}
	}

	if p.config.StateFile != "/tmp/state.db" {
		t.Errorf("StateFile = %s, want /tmp/state.db", p.config.StateFile)
	}
	if p.config.RateLimit.RequestsPerSecond != 3 || p.config.RateLimit.Burst != 2 {
		t.Errorf("RateLimit = %+v, want 3/2", p.config.RateLimit)
	}
	if p.config.Client.Timeout != 4*time.Second {
		t.Errorf("Client.Timeout = %v, want 4s", p.config.Client.Timeout)
	}
	if p.config.UserAgent != "test-agent" {
		t.Errorf("UserAgent = %s, want test-agent", p.config.UserAgent)
	}
	if !p.config.Verbose || !p.config.Debug {
		t.Error("Verbose and Debug should be true")
	}
}
