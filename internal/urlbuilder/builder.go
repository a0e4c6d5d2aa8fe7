// Package urlbuilder turns a path template and bound values into a request URL.
package urlbuilder

import (
	"net/url"
	"regexp"
	"strings"
)

var placeholderRE = regexp.MustCompile(`\{([A-Za-z0-9_\-]+)\}`)

// formEscaper adjusts url.QueryEscape output to the browser's
// application/x-www-form-urlencoded set, which keeps '*' and escapes '~'.
var formEscaper = strings.NewReplacer("%2A", "*", "~", "%7E")

// QueryValue is one name/value pair of the query string.
type QueryValue struct {
	Name  string
	Value string
}

// Build joins baseURL and pathTemplate, substitutes {name} tokens from
// pathValues and appends the non-empty query values in the given order.
//
// Path values are inserted verbatim. Tokens with no value are left in
// place; see Unresolved.
func Build(baseURL, pathTemplate string, pathValues map[string]string, query []QueryValue) string {
	path := placeholderRE.ReplaceAllStringFunc(pathTemplate, func(tok string) string {
		name := tok[1 : len(tok)-1]
		if v, ok := pathValues[name]; ok && v != "" {
			return v
		}
		return tok
	})

	u := strings.TrimRight(baseURL, "/") + path
	if qs := EncodeQuery(query); qs != "" {
		u += "?" + qs
	}
	return u
}

// EncodeQuery form-encodes the pairs in order, skipping empty values.
// Unlike url.Values.Encode it keeps declaration order, and the output
// matches URLSearchParams byte for byte.
func EncodeQuery(query []QueryValue) string {
	var b strings.Builder
	for _, q := range query {
		if q.Value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(formEscape(q.Name))
		b.WriteByte('=')
		b.WriteString(formEscape(q.Value))
	}
	return b.String()
}

func formEscape(s string) string {
	return formEscaper.Replace(url.QueryEscape(s))
}

// Placeholders lists the {name} tokens of a path template in order.
func Placeholders(pathTemplate string) []string {
	matches := placeholderRE.FindAllStringSubmatch(pathTemplate, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// Unresolved lists placeholders still present in a built URL, ignoring
// anything after the query separator.
func Unresolved(u string) []string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return Placeholders(u)
}
