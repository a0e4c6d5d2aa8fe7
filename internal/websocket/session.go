// Package websocket runs live playground sessions over gorilla/websocket.
// Each connection owns its selection, input values and auto-trigger
// scheduler; only the environment choice is shared through the store.
package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	perrors "github.com/Maharshi-24/Documentation-PostalPincodes/internal/errors"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/executor"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/request"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/session"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/snippet"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/urlbuilder"
)

// Timeouts for the connection.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	closeGrace = time.Second
	sendQueue  = 32
	maxMessage = 64 << 10
)

// Session serves one playground connection.
type Session struct {
	conn  *websocket.Conn
	reg   registry.Source
	state *session.State
	exec  *executor.Executor
	sched *executor.Scheduler
	log   *logger.Logger

	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
	runs      sync.WaitGroup
}

// NewSession wires a connection to the registry, the per-connection
// state and the shared executor.
func NewSession(conn *websocket.Conn, reg registry.Source, st *session.State, exec *executor.Executor, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	s := &Session{
		conn:  conn,
		reg:   reg,
		state: st,
		exec:  exec,
		log:   log.WithComponent("playground"),
		send:  make(chan Frame, sendQueue),
		done:  make(chan struct{}),
	}
	s.sched = executor.NewScheduler(exec, st.BaseURL, s.deliver,
		executor.OnSuppressed(s.suppressed),
		executor.WithSchedulerLogger(log),
	)
	return s
}

// Serve runs the session until the peer disconnects or ctx is cancelled.
func (s *Session) Serve(ctx context.Context) error {
	s.exec.Metrics().SessionOpened()
	defer s.exec.Metrics().SessionClosed()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx)
	}()

	s.pushState()
	err := s.readLoop(ctx)

	s.close()
	cancel()
	s.sched.Close()
	s.runs.Wait()
	<-writerDone
	s.conn.Close()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

func (s *Session) readLoop(ctx context.Context) error {
	s.conn.SetReadLimit(maxMessage)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.handle(ctx, msg)
	}
}

// writeLoop drains the send queue. Once it stops nothing reads the queue,
// so every exit closes done and pending pushes are dropped.
func (s *Session) writeLoop(ctx context.Context) {
	defer s.close()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case f := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(f); err != nil {
				s.log.WithError(err).Debug("write failed")
				s.conn.Close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}
		case <-ctx.Done():
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			// Unblock the reader if the peer never answers the close.
			time.AfterFunc(closeGrace, func() { s.conn.Close() })
			return
		}
	}
}

func (s *Session) handle(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case MsgSelect:
		d, err := s.reg.Current().Get(msg.Endpoint)
		if err != nil {
			s.fail(err)
			return
		}
		s.state.SelectEndpoint(d.Key)
		if msg.Values != nil {
			s.state.SetValues(msg.Values)
		}
		s.pushState()

	case MsgInput:
		if msg.Name != "" {
			s.state.SetValue(msg.Name, msg.Value)
		}
		if msg.Values != nil {
			s.state.SetValues(msg.Values)
		}
		d, ok := s.current()
		if !ok {
			return
		}
		if d.IsAutoTrigger() {
			s.sched.Trigger(d, s.state)
			return
		}
		s.pushSnippet(d)

	case MsgEnv:
		err := s.state.SetEnvironment(msg.Env)
		switch {
		case perrors.IsNotFound(err):
			s.fail(err)
			return
		case err != nil:
			s.log.WithError(err).Warn("environment not saved")
		}
		s.pushState()

	case MsgLang:
		lang, err := snippet.ParseLanguage(msg.Lang)
		if err != nil {
			s.fail(err)
			return
		}
		s.state.SetLanguage(lang)
		if d, ok := s.current(); ok && !d.IsAutoTrigger() {
			s.pushSnippet(d)
		}

	case MsgExecute:
		d, ok := s.current()
		if !ok {
			return
		}
		s.push(Frame{Type: FrameLoading, Endpoint: d.Key})
		s.runs.Add(1)
		go func() {
			defer s.runs.Done()
			s.sched.Run(ctx, d, s.state)
		}()

	default:
		s.push(Frame{Type: FrameError, Error: "unknown message type " + msg.Type})
	}
}

func (s *Session) current() (*registry.Descriptor, bool) {
	d, err := s.reg.Current().Get(s.state.Endpoint())
	if err != nil {
		s.fail(err)
		return nil, false
	}
	return d, true
}

func (s *Session) pushState() {
	d, ok := s.current()
	if !ok {
		return
	}
	s.push(Frame{
		Type:        FrameState,
		Endpoint:    d.Key,
		Env:         s.state.Environment(),
		BaseURL:     s.state.BaseURL(),
		Lang:        string(s.state.Language()),
		AutoTrigger: d.IsAutoTrigger(),
	})
	if !d.IsAutoTrigger() {
		s.pushSnippet(d)
	}
}

// pushSnippet sends the request preview. Auto-trigger endpoints have no
// preview since they fire on their own.
func (s *Session) pushSnippet(d *registry.Descriptor) {
	lang := s.state.Language()
	text, err := snippet.Generate(request.Build(d, s.state.BaseURL(), s.state), lang)
	if err != nil {
		s.fail(err)
		return
	}
	s.exec.Metrics().RecordSnippet(string(lang))
	s.push(Frame{Type: FrameSnippet, Endpoint: d.Key, Lang: string(lang), Snippet: text})
}

func (s *Session) deliver(out *executor.Outcome) {
	s.push(Frame{Type: FrameOutcome, Endpoint: out.Endpoint, Outcome: out})
}

func (s *Session) suppressed(d *registry.Descriptor, err error) {
	f := Frame{Type: FrameSuppressed, Endpoint: d.Key}
	var pe *perrors.PlaygroundError
	if errors.As(err, &pe) {
		f.Missing = urlbuilder.Unresolved(pe.URL)
	}
	s.push(f)
}

func (s *Session) fail(err error) {
	s.push(Frame{Type: FrameError, Error: err.Error()})
}

// push queues a frame. Frames produced after the session closed are dropped.
func (s *Session) push(f Frame) {
	select {
	case s.send <- f:
	case <-s.done:
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
