// Package segments recovers titled essay segments from model output produced for paragraph feeds.
package segments

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/modifier"
)

// Separator splits flattened pooled output back into per-variant blocks.
const Separator = modifier.Separator

const (
	TypeIntroduction  = "introduction"
	TypeConclusion    = "conclusion"
	TypeTopicSentence = "topic-sentence"
	TypeMainPoint     = "main-point"
	TypeUnknown       = "unknown"
	DefaultTitle      = "Paragraph"
	maxTitleRunes     = 80
)

type Segment struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Type    string `json:"type"`
	Order   int    `json:"order"`
}

var (
	headerRe = regexp.MustCompile(`(?is)^[#*\s]*Paragraph\s*[-:\x{2013}\x{2014}]\s*([^\n]+)\n(.*)$`)
	labelRe  = regexp.MustCompile(`(?im)^[ \t>#*-]*(Introduction|Topic Sentence|Main Point(?:\s*\d+)?|Conclusion|Body Paragraph(?:\s*\d+)?)\b[ \t*]*[:\-\x{2013}\x{2014}]?[ \t*]*`)
	markerRe = regexp.MustCompile(`(?m)^[ \t]*(?:#{1,6}|[-*+\x{2022}]|\d+[.)])[ \t]+`)
)

// Extract splits flattened output into segments. Order is one counter across every block, starting
// at 1.
func Extract(flattened string) []Segment {
	var out []Segment
	order := 0
	add := func(title, content string) {
		content = clean(content)
		if content == "" {
			return
		}
		order++
		title = cleanTitle(title)
		out = append(out, Segment{Title: title, Content: content, Type: InferType(title), Order: order})
	}

	for _, block := range strings.Split(flattened, Separator) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if m := headerRe.FindStringSubmatch(block); m != nil {
			if subs := labelled(m[2]); len(subs) > 0 {
				for _, s := range subs {
					add(s[0], s[1])
				}
				continue
			}
			header, _, _ := strings.Cut(block, "\n")
			add(header, m[2])
			continue
		}
		title, content := splitFirstLine(block)
		add(title, content)
	}
	return out
}

// labelled returns [title, content] pairs for each vocabulary label in body.
func labelled(body string) [][2]string {
	locs := labelRe.FindAllStringSubmatchIndex(body, -1)
	if len(locs) == 0 {
		return nil
	}
	out := make([][2]string, 0, len(locs))
	for i, loc := range locs {
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, [2]string{body[loc[2]:loc[3]], body[loc[1]:end]})
	}
	return out
}

func splitFirstLine(block string) (string, string) {
	first, rest, ok := strings.Cut(block, "\n")
	if !ok || strings.TrimSpace(rest) == "" {
		return DefaultTitle, block
	}
	first = cleanTitle(first)
	if first == "" || utf8.RuneCountInString(first) > maxTitleRunes || strings.ContainsAny(first[len(first)-1:], ".!?") {
		return DefaultTitle, block
	}
	return first, rest
}

func clean(s string) string {
	return strings.TrimSpace(markerRe.ReplaceAllString(s, ""))
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(markerRe.ReplaceAllString(strings.TrimSpace(s), ""))
	s = strings.Trim(s, "*_ \t")
	s = strings.TrimSuffix(s, ":")
	return strings.TrimSpace(s)
}

// InferType maps a title onto the segment vocabulary by case-insensitive substring.
func InferType(title string) string {
	t := strings.ToLower(strings.NewReplacer("-", " ", "_", " ").Replace(title))
	switch {
	case strings.Contains(t, "introduction"):
		return TypeIntroduction
	case strings.Contains(t, "conclusion"):
		return TypeConclusion
	case strings.Contains(t, "topic sentence"):
		return TypeTopicSentence
	case strings.Contains(t, "main point"):
		return TypeMainPoint
	default:
		return TypeUnknown
	}
}
