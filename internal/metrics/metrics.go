// Package metrics collects counters for the docs server and playground.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and aggregates metrics.
type Collector struct {
	// Counters
	requestsTotal      atomic.Int64
	errorsTotal        atomic.Int64
	bytesTotal         atomic.Int64
	snippetsTotal      atomic.Int64
	triggersSuppressed atomic.Int64
	triggersCoalesced  atomic.Int64
	pageViews          atomic.Int64

	// Rate tracking
	requestsInWindow atomic.Int64
	errorsInWindow   atomic.Int64
	windowStart      atomic.Int64

	// Response time tracking
	responseTimesSum atomic.Int64
	responseTimesNum atomic.Int64

	// Gauges
	liveSessions atomic.Int64

	// Histograms (buckets for response times in ms)
	responseTimeBuckets [10]atomic.Int64 // <10, <50, <100, <250, <500, <1000, <2500, <5000, <10000, >=10000

	// Error breakdown
	errorCounts map[string]*atomic.Int64
	errorMu     sync.RWMutex

	// Status code breakdown
	statusCodes map[int]*atomic.Int64
	statusMu    sync.RWMutex

	// Snippets by language
	snippetLangs map[string]*atomic.Int64
	snippetMu    sync.RWMutex

	startTime atomic.Int64
}

// New creates a new metrics collector.
func New() *Collector {
	now := time.Now()
	c := &Collector{
		errorCounts:  make(map[string]*atomic.Int64),
		statusCodes:  make(map[int]*atomic.Int64),
		snippetLangs: make(map[string]*atomic.Int64),
	}
	c.windowStart.Store(now.UnixNano())
	c.startTime.Store(now.UnixNano())
	return c
}

// RecordRequest records an outgoing playground request.
func (c *Collector) RecordRequest() {
	c.requestsTotal.Add(1)
	c.requestsInWindow.Add(1)
}

// RecordError records a failed request by error kind.
func (c *Collector) RecordError(errorType string) {
	c.errorsTotal.Add(1)
	c.errorsInWindow.Add(1)
	increment(&c.errorMu, c.errorCounts, errorType)
}

// RecordResponseTime records a response time.
func (c *Collector) RecordResponseTime(d time.Duration) {
	ms := d.Milliseconds()
	c.responseTimesSum.Add(ms)
	c.responseTimesNum.Add(1)
	c.responseTimeBuckets[bucket(ms)].Add(1)
}

// bucket returns the histogram bucket for a given response time.
func bucket(ms int64) int {
	switch {
	case ms < 10:
		return 0
	case ms < 50:
		return 1
	case ms < 100:
		return 2
	case ms < 250:
		return 3
	case ms < 500:
		return 4
	case ms < 1000:
		return 5
	case ms < 2500:
		return 6
	case ms < 5000:
		return 7
	case ms < 10000:
		return 8
	default:
		return 9
	}
}

// RecordStatusCode records an HTTP status code.
func (c *Collector) RecordStatusCode(code int) {
	increment(&c.statusMu, c.statusCodes, code)
}

// RecordBytes records received response bytes.
func (c *Collector) RecordBytes(n int64) {
	c.bytesTotal.Add(n)
}

// RecordSnippet records a generated snippet.
func (c *Collector) RecordSnippet(lang string) {
	c.snippetsTotal.Add(1)
	increment(&c.snippetMu, c.snippetLangs, lang)
}

// RecordSuppressed records an auto-trigger that fired with unresolved
// path placeholders and was not sent.
func (c *Collector) RecordSuppressed() {
	c.triggersSuppressed.Add(1)
}

// RecordCoalesced records an auto-trigger replaced by a newer one within
// the debounce window.
func (c *Collector) RecordCoalesced() {
	c.triggersCoalesced.Add(1)
}

// RecordPageView records a rendered docs or playground page.
func (c *Collector) RecordPageView() {
	c.pageViews.Add(1)
}

// SessionOpened increments the live session gauge.
func (c *Collector) SessionOpened() {
	c.liveSessions.Add(1)
}

// SessionClosed decrements the live session gauge.
func (c *Collector) SessionClosed() {
	c.liveSessions.Add(-1)
}

// increment bumps m[key], creating the counter on first use.
func increment[K comparable](mu *sync.RWMutex, m map[K]*atomic.Int64, key K) {
	mu.RLock()
	counter := m[key]
	mu.RUnlock()
	if counter == nil {
		mu.Lock()
		if counter = m[key]; counter == nil {
			counter = &atomic.Int64{}
			m[key] = counter
		}
		mu.Unlock()
	}
	counter.Add(1)
}

// GetRequestsPerSecond returns the current requests per second rate.
func (c *Collector) GetRequestsPerSecond() float64 {
	return c.getRatePerSecond(&c.requestsInWindow)
}

// GetErrorsPerSecond returns the current errors per second rate.
func (c *Collector) GetErrorsPerSecond() float64 {
	return c.getRatePerSecond(&c.errorsInWindow)
}

// getRatePerSecond calculates rate per second with window rotation.
func (c *Collector) getRatePerSecond(counter *atomic.Int64) float64 {
	windowDuration := 10 * time.Second
	now := time.Now().UnixNano()
	windowStart := c.windowStart.Load()

	elapsed := time.Duration(now - windowStart)
	if elapsed >= windowDuration {
		if c.windowStart.CompareAndSwap(windowStart, now) {
			c.requestsInWindow.Store(0)
			c.errorsInWindow.Store(0)
		}
		return 0
	}

	if elapsed <= 0 {
		return 0
	}
	return float64(counter.Load()) / elapsed.Seconds()
}

// GetAverageResponseTime returns the average response time.
func (c *Collector) GetAverageResponseTime() time.Duration {
	sum := c.responseTimesSum.Load()
	num := c.responseTimesNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(sum/num) * time.Millisecond
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(time.Unix(0, c.startTime.Load())),
		RequestsTotal:       c.requestsTotal.Load(),
		ErrorsTotal:         c.errorsTotal.Load(),
		BytesTotal:          c.bytesTotal.Load(),
		SnippetsTotal:       c.snippetsTotal.Load(),
		TriggersSuppressed:  c.triggersSuppressed.Load(),
		TriggersCoalesced:   c.triggersCoalesced.Load(),
		PageViews:           c.pageViews.Load(),
		LiveSessions:        c.liveSessions.Load(),
		RequestsPerSecond:   c.GetRequestsPerSecond(),
		ErrorsPerSecond:     c.GetErrorsPerSecond(),
		AverageResponseTime: c.GetAverageResponseTime(),
		ErrorCounts:         make(map[string]int64),
		StatusCodes:         make(map[int]int64),
		SnippetLanguages:    make(map[string]int64),
		ResponseTimeHist:    make([]int64, len(c.responseTimeBuckets)),
	}

	c.errorMu.RLock()
	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v.Load()
	}
	c.errorMu.RUnlock()

	c.statusMu.RLock()
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v.Load()
	}
	c.statusMu.RUnlock()

	c.snippetMu.RLock()
	for k, v := range c.snippetLangs {
		s.SnippetLanguages[k] = v.Load()
	}
	c.snippetMu.RUnlock()

	for i := range c.responseTimeBuckets {
		s.ResponseTimeHist[i] = c.responseTimeBuckets[i].Load()
	}

	return s
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp           time.Time        `json:"timestamp"`
	Uptime              time.Duration    `json:"uptime"`
	RequestsTotal       int64            `json:"requests_total"`
	ErrorsTotal         int64            `json:"errors_total"`
	BytesTotal          int64            `json:"bytes_total"`
	SnippetsTotal       int64            `json:"snippets_total"`
	TriggersSuppressed  int64            `json:"triggers_suppressed"`
	TriggersCoalesced   int64            `json:"triggers_coalesced"`
	PageViews           int64            `json:"page_views"`
	LiveSessions        int64            `json:"live_sessions"`
	RequestsPerSecond   float64          `json:"requests_per_second"`
	ErrorsPerSecond     float64          `json:"errors_per_second"`
	AverageResponseTime time.Duration    `json:"average_response_time"`
	ErrorCounts         map[string]int64 `json:"error_counts"`
	StatusCodes         map[int]int64    `json:"status_codes"`
	SnippetLanguages    map[string]int64 `json:"snippet_languages"`
	ResponseTimeHist    []int64          `json:"response_time_histogram"`
}

// ErrorRate returns the error rate (errors/requests).
func (s *Snapshot) ErrorRate() float64 {
	if s.RequestsTotal == 0 {
		return 0
	}
	return float64(s.ErrorsTotal) / float64(s.RequestsTotal)
}

// Summary returns a human-readable summary.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":               s.Uptime.String(),
		"requests_total":       s.RequestsTotal,
		"errors_total":         s.ErrorsTotal,
		"error_rate":           s.ErrorRate(),
		"snippets_total":       s.SnippetsTotal,
		"triggers_suppressed":  s.TriggersSuppressed,
		"triggers_coalesced":   s.TriggersCoalesced,
		"live_sessions":        s.LiveSessions,
		"requests_per_second":  s.RequestsPerSecond,
		"avg_response_time_ms": s.AverageResponseTime.Milliseconds(),
	}
}
