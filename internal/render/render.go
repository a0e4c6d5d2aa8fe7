// Package render syntax-highlights JSON responses for the page and the terminal.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Token classes, used as CSS class names in HTML output.
const (
	ClassKey     = "key"
	ClassString  = "string"
	ClassNumber  = "number"
	ClassBoolean = "boolean"
	ClassNull    = "null"
)

// tokenRE matches quoted strings (with an optional trailing colon for
// keys), literals and numbers.
var tokenRE = regexp.MustCompile(`("(\\u[a-zA-Z0-9]{4}|\\[^u]|[^\\"])*"(\s*:)?|\b(true|false|null)\b|-?\d+(?:\.\d*)?(?:[eE][+\-]?\d+)?)`)

var markupReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Classify returns the token class of one match of the tokenizer.
func Classify(tok string) string {
	switch {
	case strings.HasPrefix(tok, `"`):
		if strings.HasSuffix(tok, ":") {
			return ClassKey
		}
		return ClassString
	case tok == "true" || tok == "false":
		return ClassBoolean
	case tok == "null":
		return ClassNull
	default:
		return ClassNumber
	}
}

// Text returns the display text of v. Strings are used as-is, anything
// else is serialized as JSON with two-space indentation.
func Text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Highlight escapes &, < and > and wraps every token in
// <span class="CLASS">. Text outside tokens is left unwrapped.
func Highlight(v any) string {
	escaped := markupReplacer.Replace(Text(v))
	return tokenRE.ReplaceAllStringFunc(escaped, func(tok string) string {
		return `<span class="` + Classify(tok) + `">` + tok + `</span>`
	})
}

// ANSI colour codes.
const (
	colorReset  = "\033[0m"
	colorKey    = "\033[36m" // cyan
	colorString = "\033[32m" // green
	colorNumber = "\033[33m" // yellow
	colorBool   = "\033[35m" // magenta
	colorNull   = "\033[90m" // gray
)

var ansiColors = map[string]string{
	ClassKey:     colorKey,
	ClassString:  colorString,
	ClassNumber:  colorNumber,
	ClassBoolean: colorBool,
	ClassNull:    colorNull,
}

// ANSI colours the same tokens for a terminal. Keys are coloured without
// their trailing colon.
func ANSI(v any) string {
	return tokenRE.ReplaceAllStringFunc(Text(v), func(tok string) string {
		class := Classify(tok)
		if class == ClassKey {
			i := strings.LastIndexByte(tok, '"')
			return colorKey + tok[:i+1] + colorReset + tok[i+1:]
		}
		return ansiColors[class] + tok + colorReset
	})
}
