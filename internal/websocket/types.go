package websocket

import "github.com/Maharshi-24/Documentation-PostalPincodes/internal/executor"

// Client message types.
const (
	MsgSelect  = "select"
	MsgInput   = "input"
	MsgEnv     = "env"
	MsgLang    = "lang"
	MsgExecute = "execute"
)

// Server frame types.
const (
	FrameState      = "state"
	FrameSnippet    = "snippet"
	FrameLoading    = "loading"
	FrameOutcome    = "outcome"
	FrameSuppressed = "suppressed"
	FrameError      = "error"
)

// ClientMessage is a frame sent by the playground page.
type ClientMessage struct {
	Type     string            `json:"type"`
	Endpoint string            `json:"endpoint,omitempty"`
	Name     string            `json:"name,omitempty"`
	Value    string            `json:"value,omitempty"`
	Values   map[string]string `json:"values,omitempty"`
	Env      string            `json:"env,omitempty"`
	Lang     string            `json:"lang,omitempty"`
}

// Frame is a message pushed to the playground page.
type Frame struct {
	Type        string            `json:"type"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Env         string            `json:"env,omitempty"`
	BaseURL     string            `json:"base_url,omitempty"`
	Lang        string            `json:"lang,omitempty"`
	AutoTrigger bool              `json:"auto_trigger,omitempty"`
	Snippet     string            `json:"snippet,omitempty"`
	Outcome     *executor.Outcome `json:"outcome,omitempty"`
	Missing     []string          `json:"missing,omitempty"`
	Error       string            `json:"error,omitempty"`
}
