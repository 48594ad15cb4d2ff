package modifier

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// Func transforms a scalar into a scalar or a list.
type Func func(string) Value

var registry = map[string]Func{
	"uppercase":          func(s string) Value { return Scalar(strings.ToUpper(s)) },
	"lowercase":          func(s string) Value { return Scalar(strings.ToLower(s)) },
	"capitalize":         func(s string) Value { return Scalar(capitalize(s)) },
	"trim":               func(s string) Value { return Scalar(strings.TrimSpace(s)) },
	"html_entity_decode": func(s string) Value { return Scalar(html.UnescapeString(s)) },
	"sentence":           func(s string) Value { return List(Sentences(s)...) },
	"paragraph":          func(s string) Value { return List(Paragraphs(s)...) },
	"markdown":           renderMarkdown,
	"strip_tags":         stripTags,
}

// Known reports whether name is a registered modifier.
func Known(name string) bool {
	if name == "flatten" {
		return true
	}
	_, ok := registry[name]
	return ok
}

// Apply runs a ':'-joined chain left to right. Unknown names leave the value unchanged.
func Apply(v Value, chain string) Value {
	for _, name := range strings.Split(chain, ":") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		v = applyOne(v, name)
	}
	return v
}

func applyOne(v Value, name string) Value {
	if name == "flatten" {
		if !v.IsList {
			return v
		}
		return Scalar(strings.Join(v.List, Separator))
	}
	fn, ok := registry[name]
	if !ok {
		return v
	}
	if !v.IsList {
		return fn(v.Scalar)
	}
	out := make([]string, 0, len(v.List))
	for _, item := range v.List {
		r := fn(item)
		if r.IsList {
			out = append(out, r.List...)
			continue
		}
		out = append(out, r.Scalar)
	}
	return Value{List: out, IsList: true}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

var (
	// A run of terminal punctuation, optional closing quotes or brackets, then whitespace.
	sentenceBoundary = regexp.MustCompile(`[.!?]+["'\x{201D}\x{2019})\]]*\s+`)
	blankLineBreak   = regexp.MustCompile(`\n[ \t]*\n+|\n[ \t]+`)
	singleLineBreak  = regexp.MustCompile(`\r?\n`)
)

// Sentences splits on terminal punctuation followed by whitespace. Decimals like 3.5 stay intact.
func Sentences(s string) []string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	var out []string
	last := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(s, -1) {
		end := loc[1]
		// keep the punctuation with the sentence, drop the whitespace
		trimmedEnd := len(strings.TrimRightFunc(s[:end], unicode.IsSpace))
		out = appendNonEmpty(out, s[last:trimmedEnd])
		last = end
	}
	out = appendNonEmpty(out, s[last:])
	if len(out) == 0 {
		return []string{Placeholder}
	}
	return out
}

// Paragraphs splits on blank lines or indented line starts, falling back to single newlines.
func Paragraphs(s string) []string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	var out []string
	for _, p := range blankLineBreak.Split(s, -1) {
		out = appendNonEmpty(out, p)
	}
	if len(out) <= 1 {
		var lines []string
		for _, p := range singleLineBreak.Split(s, -1) {
			lines = appendNonEmpty(lines, p)
		}
		if len(lines) > 1 {
			out = lines
		}
	}
	if len(out) == 0 {
		return []string{Placeholder}
	}
	return out
}

func appendNonEmpty(out []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	return append(out, s)
}

var stripPolicy = bluemonday.StrictPolicy()

func stripTags(s string) Value {
	return Scalar(html.UnescapeString(stripPolicy.Sanitize(s)))
}

func renderMarkdown(s string) Value {
	var b strings.Builder
	if err := goldmark.Convert([]byte(s), &b); err != nil {
		return Scalar(s)
	}
	return Scalar(strings.TrimSpace(b.String()))
}
