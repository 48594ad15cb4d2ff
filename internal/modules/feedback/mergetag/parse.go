// Package mergetag finds {prefix|table:field[filter:value]:modifiers|suffix} tags in prompts and
// expands them against essay data.
package mergetag

import "strings"

type Filter struct {
	Field string
	Value string
}

type TagSpec struct {
	Table     string
	Field     string
	Filter    *Filter
	Modifiers string
}

type Tag struct {
	// Raw is the full tag text including braces; identical Raw values resolve once.
	Raw    string
	Prefix string
	Suffix string
	Spec   TagSpec
	Start  int
	End    int
}

// Parse returns every merge tag in prompt in order of appearance. Brace groups that do not have
// the tag shape (for example JSON examples in a prompt) are left as literal text, but tags nested
// inside them are still found.
func Parse(prompt string) []Tag {
	var tags []Tag
	for i := 0; i < len(prompt); i++ {
		if prompt[i] != '{' {
			continue
		}
		end, ok := matchBrace(prompt, i)
		if !ok {
			continue
		}
		if tag, ok := parseTag(prompt[i+1 : end]); ok {
			tag.Raw = prompt[i : end+1]
			tag.Start = i
			tag.End = end + 1
			tags = append(tags, tag)
			i = end
		}
	}
	return tags
}

// matchBrace returns the index of the '}' closing the '{' at open. Braces inside [...] do not count.
func matchBrace(s string, open int) (int, bool) {
	depth, bracket := 0, 0
	for j := open; j < len(s); j++ {
		switch s[j] {
		case '[':
			bracket++
		case ']':
			if bracket > 0 {
				bracket--
			}
		case '{':
			if bracket == 0 {
				depth++
			}
		case '}':
			if bracket == 0 {
				depth--
				if depth == 0 {
					return j, true
				}
			}
		}
	}
	return 0, false
}

func parseTag(body string) (Tag, bool) {
	parts := splitTopLevel(body)
	if len(parts) < 3 {
		return Tag{}, false
	}
	spec, ok := ParseSpec(strings.TrimSpace(parts[1]))
	if !ok {
		return Tag{}, false
	}
	return Tag{Prefix: parts[0], Spec: spec, Suffix: parts[2]}, true
}

// splitTopLevel splits on '|' outside nested braces and brackets.
func splitTopLevel(s string) []string {
	var parts []string
	depth, bracket, last := 0, 0, 0
	for j := 0; j < len(s); j++ {
		switch s[j] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case '[':
			bracket++
		case ']':
			if bracket > 0 {
				bracket--
			}
		case '|':
			if depth == 0 && bracket == 0 {
				parts = append(parts, s[last:j])
				last = j + 1
			}
		}
	}
	return append(parts, s[last:])
}

// ParseSpec reads table:field[filter_field:filter_value]:modifier_chain.
func ParseSpec(s string) (TagSpec, bool) {
	var spec TagSpec
	p := &specScanner{s: s}

	spec.Table = p.ident()
	if spec.Table == "" || !p.consume(':') {
		return TagSpec{}, false
	}
	spec.Field = p.ident()
	if spec.Field == "" {
		return TagSpec{}, false
	}
	if p.consume('[') {
		inner, ok := p.until(']')
		if !ok {
			return TagSpec{}, false
		}
		field, value, found := strings.Cut(inner, ":")
		field = strings.TrimSpace(field)
		if !found || field == "" {
			return TagSpec{}, false
		}
		spec.Filter = &Filter{Field: field, Value: strings.TrimSpace(value)}
	}
	if p.done() {
		return spec, true
	}
	if !p.consume(':') {
		return TagSpec{}, false
	}
	spec.Modifiers = strings.TrimSpace(p.rest())
	return spec, true
}

type specScanner struct {
	s   string
	pos int
}

func (p *specScanner) done() bool { return p.pos >= len(p.s) }

func (p *specScanner) consume(c byte) bool {
	if p.pos < len(p.s) && p.s[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *specScanner) ident() string {
	start := p.pos
	for p.pos < len(p.s) && isIdent(p.s[p.pos]) {
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *specScanner) until(c byte) (string, bool) {
	idx := strings.IndexByte(p.s[p.pos:], c)
	if idx < 0 {
		return "", false
	}
	out := p.s[p.pos : p.pos+idx]
	p.pos += idx + 1
	return out, true
}

func (p *specScanner) rest() string {
	out := p.s[p.pos:]
	p.pos = len(p.s)
	return out
}

func isIdent(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
