package server

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/binder"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/request"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/session"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/snippet"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/urlbuilder"
)

var funcs = template.FuncMap{
	"lower": strings.ToLower,
	"badge": paramBadge,
}

// paramBadge is the type label shown next to a parameter name.
func paramBadge(p registry.ParamView) string {
	if p.In == registry.InQuery {
		return "query"
	}
	return string(p.DataType)
}

type langTab struct {
	Lang   snippet.Language
	Label  string
	Active bool
}

type envTab struct {
	urlbuilder.Environment
	Active bool
}

type pageData struct {
	Page      string
	Endpoints []*registry.Descriptor
	Current   *registry.Descriptor
	Params    []registry.ParamView
	Envs      []envTab
	Env       string
	BaseURL   string
	Langs     []langTab
	Lang      snippet.Language
	Snippet   string
}

// pageState resolves the selection for a page request. An env query
// parameter switches and persists the environment.
func (s *Server) pageState(r *http.Request) (*session.State, *registry.Descriptor, error) {
	st := s.sessionState()
	q := r.URL.Query()

	if env := q.Get("env"); env != "" {
		if err := st.SetEnvironment(env); err != nil {
			return nil, nil, err
		}
	}
	if l := q.Get("lang"); l != "" {
		lang, err := snippet.ParseLanguage(l)
		if err != nil {
			return nil, nil, err
		}
		st.SetLanguage(lang)
	}

	reg := s.reg.Current()
	key := q.Get("endpoint")
	if key == "" {
		key = st.Endpoint()
		if _, ok := reg.Lookup(key); !ok {
			key = reg.First().Key
		}
	}
	d, err := reg.Get(key)
	if err != nil {
		return nil, nil, err
	}
	st.SelectEndpoint(d.Key)
	return st, d, nil
}

func (s *Server) newPageData(page string, st *session.State, d *registry.Descriptor) *pageData {
	data := &pageData{
		Page:      page,
		Endpoints: s.reg.Current().List(),
		Current:   d,
		Params:    d.ParamViews(),
		Env:       st.Environment(),
		BaseURL:   st.BaseURL(),
		Lang:      st.Language(),
	}
	for _, e := range s.envs.List() {
		data.Envs = append(data.Envs, envTab{Environment: e, Active: e.Name == data.Env})
	}
	for _, l := range snippet.Languages() {
		data.Langs = append(data.Langs, langTab{Lang: l, Label: l.Label(), Active: l == data.Lang})
	}
	return data
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	st, d, err := s.pageState(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	data := s.newPageData("docs", st, d)

	text, err := snippet.Generate(request.Build(d, data.BaseURL, binder.None), data.Lang)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.exec.Metrics().RecordSnippet(string(data.Lang))
	data.Snippet = text

	s.render(w, "docs", data)
}

func (s *Server) handlePlayground(w http.ResponseWriter, r *http.Request) {
	st, d, err := s.pageState(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	data := s.newPageData("playground", st, d)

	// The preview starts from placeholders and is replaced as the user types.
	if !d.IsAutoTrigger() {
		text, err := snippet.Generate(request.Build(d, data.BaseURL, binder.None), snippet.Curl)
		if err != nil {
			s.writeError(w, err)
			return
		}
		data.Snippet = text
	}

	s.render(w, "playground", data)
}

func (s *Server) render(w http.ResponseWriter, page string, data *pageData) {
	var buf bytes.Buffer
	if err := s.pages[page].ExecuteTemplate(&buf, "layout.html", data); err != nil {
		s.log.WithError(err).WithField("page", page).Error("template failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.exec.Metrics().RecordPageView()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
