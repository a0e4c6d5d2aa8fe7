// Package snippet renders a resolved request as copy-paste client code.
package snippet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	perrors "github.com/Maharshi-24/Documentation-PostalPincodes/internal/errors"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/request"
)

// Language is a snippet target syntax.
type Language string

// Supported languages, in menu order.
const (
	Curl   Language = "curl"
	Python Language = "python"
	JS     Language = "js"
)

// DefaultLanguage is the language shown before the user picks one.
const DefaultLanguage = Curl

// Languages returns every supported language in menu order.
func Languages() []Language {
	return []Language{Curl, Python, JS}
}

// Label returns the human-readable name shown in the language menu.
func (l Language) Label() string {
	switch l {
	case Curl:
		return "cURL"
	case Python:
		return "Python"
	case JS:
		return "JavaScript"
	default:
		return string(l)
	}
}

// ParseLanguage maps a case-insensitive name to a Language. "javascript"
// and "shell" are accepted as aliases.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "curl", "shell", "sh":
		return Curl, nil
	case "python", "py":
		return Python, nil
	case "js", "javascript":
		return JS, nil
	default:
		return "", perrors.NewNotFoundError("language", s)
	}
}

// Generate renders r in the given language.
func Generate(r *request.Resolved, lang Language) (string, error) {
	switch lang {
	case Curl:
		return curl(r), nil
	case Python:
		return python(r), nil
	case JS:
		return js(r), nil
	default:
		return "", perrors.NewNotFoundError("language", string(lang))
	}
}

func curl(r *request.Resolved) string {
	var b strings.Builder
	fmt.Fprintf(&b, "curl --request %s \\\n  --url '%s'", r.Method, r.URL)
	if r.HasBody() {
		fmt.Fprintf(&b, " \\\n  --header 'Content-Type: application/json' \\\n  --data '%s'", indentJSON(r.Body))
	}
	return b.String()
}

func python(r *request.Resolved) string {
	var b strings.Builder
	fmt.Fprintf(&b, "import requests\n\nurl = \"%s\"\n", r.URL)
	if r.HasBody() {
		fmt.Fprintf(&b, "payload = %s\nheaders = {\"Content-Type\": \"application/json\"}\n\n", indentJSON(r.Body))
		fmt.Fprintf(&b, "response = requests.request(\"%s\", url, json=payload, headers=headers)", r.Method)
	} else {
		fmt.Fprintf(&b, "\nresponse = requests.request(\"%s\", url)", r.Method)
	}
	b.WriteString("\n\nprint(response.text)")
	return b.String()
}

func js(r *request.Resolved) string {
	var b strings.Builder
	fmt.Fprintf(&b, "const options = {method: '%s'", r.Method)
	if r.HasBody() {
		fmt.Fprintf(&b, ", headers: {'Content-Type': 'application/json'}, body: JSON.stringify(%s)", compactJSON(r.Body))
	}
	fmt.Fprintf(&b, "};\n\nfetch('%s', options)\n", r.URL)
	b.WriteString("  .then(response => response.json())\n")
	b.WriteString("  .then(response => console.log(response))\n")
	b.WriteString("  .catch(err => console.error(err));")
	return b.String()
}

func indentJSON(v any) string {
	return encodeJSON(v, "  ")
}

func compactJSON(v any) string {
	return encodeJSON(v, "")
}

// encodeJSON matches JSON.stringify output: no HTML escaping and no
// trailing newline.
func encodeJSON(v any, indent string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML makes snippet text safe to insert into a page as markup.
func EscapeHTML(s string) string {
	return htmlReplacer.Replace(s)
}
