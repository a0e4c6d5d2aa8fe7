package executor

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind classifies how a request ended.
type Kind int

const (
	// Success is a 2xx response.
	Success Kind = iota
	// HTTPError is a response outside 2xx. Its body is still shown.
	HTTPError
	// NetworkError means no response was received.
	NetworkError
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case HTTPError:
		return "http_error"
	default:
		return "network_error"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome is the displayable result of one executed request.
type Outcome struct {
	Kind       Kind          `json:"kind"`
	Endpoint   string        `json:"endpoint"`
	Method     string        `json:"method"`
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code,omitempty"`
	StatusText string        `json:"status_text,omitempty"`
	Elapsed    time.Duration `json:"-"`
	// Body is the raw response body.
	Body []byte `json:"-"`
	// JSON is the decoded body, nil when the body is not JSON.
	JSON any `json:"json,omitempty"`
	// Markup is the highlighted body, or the escaped error message.
	Markup string `json:"markup"`
	// Message is the transport error text of a NetworkError, or of a body
	// read that failed after the status arrived.
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

// OK reports whether the request succeeded with a 2xx status.
func (o *Outcome) OK() bool {
	return o.Kind == Success
}

// StatusLine renders "200 OK (42ms)", or "ERROR" when no response arrived.
func (o *Outcome) StatusLine() string {
	if o.Kind == NetworkError {
		return "ERROR"
	}
	return fmt.Sprintf("%d %s (%dms)", o.StatusCode, o.StatusText, o.Elapsed.Milliseconds())
}

// MarshalJSON adds the status line and elapsed milliseconds.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	type plain Outcome
	return json.Marshal(struct {
		*plain
		ElapsedMS  int64  `json:"elapsed_ms"`
		StatusLine string `json:"status_line"`
		Body       string `json:"body,omitempty"`
	}{
		plain:      (*plain)(o),
		ElapsedMS:  o.Elapsed.Milliseconds(),
		StatusLine: o.StatusLine(),
		Body:       string(o.Body),
	})
}
