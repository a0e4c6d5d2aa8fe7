package executor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/binder"
	perrors "github.com/Maharshi-24/Documentation-PostalPincodes/internal/errors"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/metrics"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/ratelimit"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/request"
)

var statusLineRE = regexp.MustCompile(`^\d{3} [A-Za-z ]+ \(\d+ms\)$`)

// =============================================================================
// Executor Tests
// =============================================================================

func TestExecute_Success(t *testing.T) {
	seen := make(chan *http.Request, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"pincode":"110001","count":2,"valid":true}`)
	}))
	defer server.Close()

	m := metrics.New()
	e := New(WithMetrics(m))
	out := e.Execute(context.Background(), &request.Resolved{
		Endpoint: "pincode", Method: "GET", URL: server.URL + "/api/v1/pincode/110001",
	})

	if out.Kind != Success || !out.OK() {
		t.Fatalf("Kind = %v, want success (err %v)", out.Kind, out.Err)
	}
	req := <-seen
	if req.Method != "GET" || req.URL.Path != "/api/v1/pincode/110001" {
		t.Errorf("server saw %s %s", req.Method, req.URL.Path)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if !statusLineRE.MatchString(out.StatusLine()) || !strings.HasPrefix(out.StatusLine(), "200 OK (") {
		t.Errorf("StatusLine() = %q", out.StatusLine())
	}
	if !strings.Contains(out.Markup, `<span class="key">"pincode":</span>`) {
		t.Errorf("Markup = %s", out.Markup)
	}
	if !strings.Contains(out.Markup, `<span class="number">2</span>`) {
		t.Errorf("Markup should keep numbers as sent: %s", out.Markup)
	}
	if out.JSON == nil {
		t.Error("JSON should be decoded")
	}

	snap := m.Snapshot()
	if snap.RequestsTotal != 1 || snap.StatusCodes[200] != 1 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestExecute_PostBody(t *testing.T) {
	bodies := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies <- string(data)
		_, _ = io.WriteString(w, `{"count":2}`)
	}))
	defer server.Close()

	d, _ := registry.Default().Get("batch")
	r := request.Build(d, server.URL, binder.None)

	out := New().Execute(context.Background(), r)
	if out.Kind != Success {
		t.Fatalf("Kind = %v", out.Kind)
	}
	if gotBody := <-bodies; gotBody != `{"pincodes":["110001","380001"]}` {
		t.Errorf("body = %s", gotBody)
	}
}

func TestExecute_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"Pincode not found"}`)
	}))
	defer server.Close()

	out := New().Execute(context.Background(), &request.Resolved{Method: "GET", URL: server.URL + "/pincode/000000"})
	if out.Kind != HTTPError || out.OK() {
		t.Fatalf("Kind = %v, want http_error", out.Kind)
	}
	if !strings.HasPrefix(out.StatusLine(), "404 Not Found (") {
		t.Errorf("StatusLine() = %q", out.StatusLine())
	}
	if !strings.Contains(out.Markup, `<span class="string">"Pincode not found"</span>`) {
		t.Errorf("error body should be highlighted: %s", out.Markup)
	}
}

func TestExecute_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream <down>")
	}))
	defer server.Close()

	out := New().Execute(context.Background(), &request.Resolved{Method: "GET", URL: server.URL})
	if out.Kind != HTTPError {
		t.Fatalf("Kind = %v", out.Kind)
	}
	if out.JSON != nil {
		t.Errorf("JSON = %v, want nil", out.JSON)
	}
	if out.Markup != "upstream &lt;down&gt;" {
		t.Errorf("Markup = %q", out.Markup)
	}
	if string(out.Body) != "upstream <down>" {
		t.Errorf("Body = %q", out.Body)
	}
}

func TestExecute_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	m := metrics.New()
	out := New(WithMetrics(m)).Execute(context.Background(), &request.Resolved{Endpoint: "states", Method: "GET", URL: url + "/states"})

	if out.Kind != NetworkError {
		t.Fatalf("Kind = %v, want network_error", out.Kind)
	}
	if out.StatusLine() != "ERROR" {
		t.Errorf("StatusLine() = %q, want ERROR", out.StatusLine())
	}
	if perrors.KindOf(out.Err) != perrors.Network {
		t.Errorf("error kind = %v, want network (%v)", perrors.KindOf(out.Err), out.Err)
	}
	if out.Message == "" || out.Markup == "" {
		t.Error("network error should carry a message")
	}
	if m.Snapshot().ErrorCounts["network"] != 1 {
		t.Errorf("ErrorCounts = %v", m.Snapshot().ErrorCounts)
	}
}

func TestExecute_RateLimitCancelled(t *testing.T) {
	l := ratelimit.NewLimiter(0.001, 1)
	if err := l.WaitHost(context.Background(), "127.0.0.1:1"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := New(WithLimiter(l)).Execute(ctx, &request.Resolved{Method: "GET", URL: "http://127.0.0.1:1/x"})
	if out.Kind != NetworkError {
		t.Fatalf("Kind = %v", out.Kind)
	}
	if perrors.KindOf(out.Err) != perrors.Cancelled {
		t.Errorf("error kind = %v, want cancelled", perrors.KindOf(out.Err))
	}
}

func TestExecute_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	cfg := DefaultClientConfig()
	cfg.Timeout = 50 * time.Millisecond
	out := New(WithHTTPClient(NewHTTPClient(cfg))).Execute(context.Background(), &request.Resolved{Method: "GET", URL: server.URL})

	if perrors.KindOf(out.Err) != perrors.Timeout {
		t.Errorf("error kind = %v, want timeout (%v)", perrors.KindOf(out.Err), out.Err)
	}
}

func TestExecute_TruncatedBodyKeepsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"pincode":`)
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	m := metrics.New()
	out := New(WithMetrics(m)).Execute(context.Background(), &request.Resolved{Method: "GET", URL: server.URL})

	if out.Kind != HTTPError {
		t.Errorf("Kind = %v, want http_error", out.Kind)
	}
	if out.StatusCode != 200 || out.StatusText != "OK" {
		t.Errorf("status = %d %q, want 200 OK", out.StatusCode, out.StatusText)
	}
	if !statusLineRE.MatchString(out.StatusLine()) {
		t.Errorf("StatusLine() = %q, want a status line", out.StatusLine())
	}
	if out.Err == nil || out.Message == "" {
		t.Errorf("Err = %v, Message = %q, want the read error", out.Err, out.Message)
	}
	if string(out.Body) != `{"pincode":` {
		t.Errorf("Body = %q, want the partial body", out.Body)
	}
	snap := m.Snapshot()
	if snap.StatusCodes[200] != 1 {
		t.Errorf("StatusCodes = %v, want one 200", snap.StatusCodes)
	}
	if len(snap.ErrorCounts) == 0 {
		t.Error("read failure should be counted as an error")
	}
}

func TestOutcome_MarshalJSON(t *testing.T) {
	out := &Outcome{Kind: Success, StatusCode: 200, StatusText: "OK", Elapsed: 42 * time.Millisecond, Body: []byte(`{}`)}
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["status_line"] != "200 OK (42ms)" {
		t.Errorf("status_line = %v", got["status_line"])
	}
	if got["kind"] != "success" || got["elapsed_ms"] != float64(42) || got["body"] != "{}" {
		t.Errorf("json = %s", data)
	}
}

// =============================================================================
// Debouncer Tests
// =============================================================================

func TestDebouncer_LastCallWins(t *testing.T) {
	var d Debouncer
	done := make(chan int, 3)

	replaced := 0
	for i := 1; i <= 3; i++ {
		i := i
		if d.Schedule(30*time.Millisecond, func() { done <- i }) {
			replaced++
		}
	}
	if replaced != 2 {
		t.Errorf("replaced = %d, want 2", replaced)
	}

	select {
	case got := <-done:
		if got != 3 {
			t.Errorf("ran call %d, want 3", got)
		}
	case <-time.After(time.Second):
		t.Fatal("debounced call never ran")
	}

	select {
	case got := <-done:
		t.Errorf("unexpected extra call %d", got)
	case <-time.After(60 * time.Millisecond):
	}
	if d.Pending() {
		t.Error("Pending() should be false after the call ran")
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	var d Debouncer
	var ran atomic.Bool

	d.Schedule(20*time.Millisecond, func() { ran.Store(true) })
	if !d.Pending() {
		t.Error("Pending() should be true")
	}
	if !d.Cancel() {
		t.Error("Cancel() should report a dropped call")
	}
	time.Sleep(50 * time.Millisecond)
	if ran.Load() {
		t.Error("cancelled call ran")
	}
	if d.Cancel() {
		t.Error("second Cancel() should report nothing pending")
	}
}

// =============================================================================
// Scheduler Tests
// =============================================================================

func autocomplete(debounce time.Duration) *registry.Descriptor {
	return &registry.Descriptor{
		Key:    "autocomplete",
		Method: "GET",
		Path:   "/autocomplete/{prefix}",
		Params: []registry.Param{
			registry.PathParam{Common: registry.Common{Name: "prefix", Placeholder: "380", Example: "380"}},
		},
		AutoTrigger: &registry.AutoTrigger{Debounce: debounce},
	}
}

type hitServer struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func newHitServer() *hitServer {
	h := &hitServer{}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.paths = append(h.paths, r.URL.Path)
		h.mu.Unlock()
		_, _ = io.WriteString(w, `{"suggestions":[]}`)
	}))
	return h
}

func (h *hitServer) hits() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.paths...)
}

func TestScheduler_TriggerCoalesces(t *testing.T) {
	srv := newHitServer()
	defer srv.Close()

	m := metrics.New()
	outcomes := make(chan *Outcome, 4)
	s := NewScheduler(New(WithMetrics(m)), func() string { return srv.URL }, func(o *Outcome) { outcomes <- o })
	defer s.Close()

	d := autocomplete(30 * time.Millisecond)
	for _, v := range []string{"3", "38", "380"} {
		if !s.Trigger(d, binder.Values{"prefix": v}) {
			t.Fatal("Trigger() should accept an auto-trigger descriptor")
		}
	}

	select {
	case out := <-outcomes:
		if out.URL != srv.URL+"/autocomplete/380" {
			t.Errorf("URL = %s", out.URL)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome delivered")
	}

	time.Sleep(60 * time.Millisecond)
	if got := srv.hits(); len(got) != 1 {
		t.Errorf("server hits = %v, want exactly one", got)
	}
	if m.Snapshot().TriggersCoalesced != 2 {
		t.Errorf("TriggersCoalesced = %d, want 2", m.Snapshot().TriggersCoalesced)
	}
}

func TestScheduler_SuppressesUnresolved(t *testing.T) {
	srv := newHitServer()
	defer srv.Close()

	m := metrics.New()
	suppressed := make(chan error, 1)
	s := NewScheduler(New(WithMetrics(m)), func() string { return srv.URL }, nil,
		OnSuppressed(func(d *registry.Descriptor, err error) { suppressed <- err }))
	defer s.Close()

	s.Trigger(autocomplete(10*time.Millisecond), binder.Values{"prefix": ""})

	select {
	case err := <-suppressed:
		if !perrors.IsUnresolved(err) {
			t.Errorf("err = %v, want unresolved", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("trigger was not suppressed")
	}
	if len(srv.hits()) != 0 {
		t.Error("suppressed trigger reached the server")
	}
	if m.Snapshot().TriggersSuppressed != 1 {
		t.Errorf("TriggersSuppressed = %d, want 1", m.Snapshot().TriggersSuppressed)
	}
}

func TestScheduler_TriggerIgnoresRegularEndpoints(t *testing.T) {
	s := NewScheduler(New(), func() string { return "http://unused" }, nil)
	defer s.Close()

	d, _ := registry.Default().Get("pincode")
	if s.Trigger(d, binder.None) {
		t.Error("Trigger() should ignore descriptors without auto-trigger")
	}
	if s.Pending() {
		t.Error("nothing should be pending")
	}
}

func TestScheduler_Run(t *testing.T) {
	srv := newHitServer()
	defer srv.Close()

	var delivered atomic.Int32
	s := NewScheduler(New(), func() string { return srv.URL }, func(*Outcome) { delivered.Add(1) })
	defer s.Close()

	d, _ := registry.Default().Get("pincode")
	out, err := s.Run(context.Background(), d, binder.Values{"code": "400001"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.URL != srv.URL+"/pincode/400001" || out.Kind != Success {
		t.Errorf("outcome = %+v", out)
	}
	if delivered.Load() != 1 {
		t.Errorf("sink deliveries = %d, want 1", delivered.Load())
	}

	if _, err := s.Run(context.Background(), autocomplete(time.Millisecond), binder.Values{}); !perrors.IsUnresolved(err) {
		t.Errorf("Run() error = %v, want unresolved", err)
	}
}

func TestScheduler_CloseDropsPending(t *testing.T) {
	srv := newHitServer()
	defer srv.Close()

	s := NewScheduler(New(), func() string { return srv.URL }, nil)
	s.Trigger(autocomplete(50*time.Millisecond), binder.Values{"prefix": "38"})
	s.Close()

	time.Sleep(100 * time.Millisecond)
	if len(srv.hits()) != 0 {
		t.Error("pending trigger fired after Close")
	}
	if s.Trigger(autocomplete(time.Millisecond), binder.Values{"prefix": "38"}) {
		t.Error("Trigger() after Close should be refused")
	}
}
