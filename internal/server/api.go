package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/binder"
	perrors "github.com/Maharshi-24/Documentation-PostalPincodes/internal/errors"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/openapi"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/request"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/snippet"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/websocket"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 64 << 10

type snippetQuery struct {
	Lang string `schema:"lang" validate:"omitempty,oneof=curl shell sh python py js javascript"`
	Env  string `schema:"env" validate:"omitempty,alphanum,max=32"`
}

type executeRequest struct {
	Env    string            `json:"env" validate:"omitempty,alphanum,max=32"`
	Values map[string]string `json:"values" validate:"max=32"`
}

type environmentRequest struct {
	Name string `json:"name" validate:"required,alphanum,max=32"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeError maps error kinds to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error()}

	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		status = http.StatusBadRequest
		resp.Kind = "invalid"
	default:
		kind := perrors.KindOf(err)
		resp.Kind = kind.String()
		switch kind {
		case perrors.NotFound:
			status = http.StatusNotFound
		case perrors.Parse, perrors.Config:
			status = http.StatusBadRequest
		case perrors.Unresolved:
			status = http.StatusUnprocessableEntity
		}
	}

	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleEnvironments(w http.ResponseWriter, r *http.Request) {
	st := s.sessionState()
	writeJSON(w, http.StatusOK, map[string]any{
		"default":      s.envs.Default(),
		"active":       st.Environment(),
		"base_url":     st.BaseURL(),
		"environments": s.envs.List(),
	})
}

func (s *Server) handleSetEnvironment(w http.ResponseWriter, r *http.Request) {
	var req environmentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.writeError(w, perrors.NewParseError("request body", "decode", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, err)
		return
	}
	st := s.sessionState()
	if err := st.SetEnvironment(req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"active":   st.Environment(),
		"base_url": st.BaseURL(),
	})
}

func (s *Server) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Current().List())
}

func (s *Server) handleEndpoint(w http.ResponseWriter, r *http.Request) {
	d, err := s.reg.Current().Get(chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleSnippet renders a snippet. Query parameters other than lang and
// env are taken as live values.
func (s *Server) handleSnippet(w http.ResponseWriter, r *http.Request) {
	d, err := s.reg.Current().Get(chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	query := r.URL.Query()
	var q snippetQuery
	if err := s.decoder.Decode(&q, query); err != nil {
		s.writeError(w, perrors.NewParseError("query", "decode", err))
		return
	}
	if err := s.validate.Struct(q); err != nil {
		s.writeError(w, err)
		return
	}

	lang := snippet.DefaultLanguage
	if q.Lang != "" {
		if lang, err = snippet.ParseLanguage(q.Lang); err != nil {
			s.writeError(w, err)
			return
		}
	}
	base, env, err := s.baseURL(q.Env)
	if err != nil {
		s.writeError(w, err)
		return
	}

	values := binder.Values{}
	for name, v := range query {
		if name != "lang" && name != "env" && len(v) > 0 {
			values[name] = v[0]
		}
	}

	req := request.Build(d, base, values)
	text, err := snippet.Generate(req, lang)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.exec.Metrics().RecordSnippet(string(lang))

	writeJSON(w, http.StatusOK, map[string]any{
		"endpoint": d.Key,
		"lang":     lang,
		"env":      env,
		"request":  req,
		"snippet":  text,
	})
}

// handleExecute runs the request server-side. A transport failure is
// still a 200 carrying a network_error outcome; only a request that could
// not be built is an error response.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	d, err := s.reg.Current().Get(chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req executeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			s.writeError(w, perrors.NewParseError("request body", "decode", err))
			return
		}
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, err)
		return
	}

	base, _, err := s.baseURL(req.Env)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resolved, err := request.BuildForExecution(d, base, binder.Values(req.Values))
	if perrors.IsUnresolved(err) {
		s.exec.Metrics().RecordSuppressed()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"suppressed": true,
			"endpoint":   d.Key,
			"error":      err.Error(),
		})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.exec.Execute(r.Context(), resolved))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.exec.Metrics().Snapshot())
}

func (s *Server) handleOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	data, err := openapi.JSON(openapi.Build(s.reg.Current(), s.envs))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleOpenAPIYAML(w http.ResponseWriter, r *http.Request) {
	data, err := openapi.YAML(openapi.Build(s.reg.Current(), s.envs))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.beginSession() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.sessions.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	sess := websocket.NewSession(conn, s.reg, s.sessionState(), s.exec, s.log)
	if err := sess.Serve(s.ctx); err != nil {
		s.log.WithError(err).Debug("playground session ended")
	}
}

// baseURL resolves an explicit environment name, or the persisted one
// when name is empty.
func (s *Server) baseURL(name string) (base, env string, err error) {
	if name == "" {
		st := s.sessionState()
		return st.BaseURL(), st.Environment(), nil
	}
	base, err = s.envs.BaseURL(name)
	if err != nil {
		return "", "", err
	}
	return base, name, nil
}
