package mergetag

import (
	"context"
	"strings"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/modifier"
)

// Resolver looks up the content a tag spec refers to. ok is false when nothing resolved.
type Resolver interface {
	Resolve(ctx context.Context, spec TagSpec, ref feed.EssayRef) (v modifier.Value, ok bool)
}

type ResolverFunc func(ctx context.Context, spec TagSpec, ref feed.EssayRef) (modifier.Value, bool)

func (f ResolverFunc) Resolve(ctx context.Context, spec TagSpec, ref feed.EssayRef) (modifier.Value, bool) {
	return f(ctx, spec, ref)
}

// Expansion is either one prompt or an ordered list of variants.
type Expansion struct {
	Single   string
	Variants []string
	IsList   bool
}

// Prompts returns the expansion as a slice regardless of shape.
func (e Expansion) Prompts() []string {
	if e.IsList {
		return e.Variants
	}
	return []string{e.Single}
}

// Expand substitutes every tag in prompt. When any tag resolves to a list the result has one
// variant per position up to the shortest list; scalar tags are resolved once and reused in every
// variant. Missing data substitutes to "". Only context cancellation returns an error.
func Expand(ctx context.Context, prompt string, ref feed.EssayRef, r Resolver) (Expansion, error) {
	tags := Parse(prompt)
	if len(tags) == 0 {
		return Expansion{Single: prompt}, nil
	}

	resolved := make(map[string]modifier.Value, len(tags))
	for _, t := range tags {
		if _, seen := resolved[t.Raw]; seen {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Expansion{}, err
		}
		v, ok := r.Resolve(ctx, t.Spec, ref)
		if !ok {
			v = modifier.Scalar("")
		}
		resolved[t.Raw] = v
	}

	variants := -1
	for _, v := range resolved {
		if v.IsList && (variants < 0 || len(v.List) < variants) {
			variants = len(v.List)
		}
	}

	if variants < 0 {
		return Expansion{Single: render(prompt, tags, func(t Tag) string {
			return resolved[t.Raw].Scalar
		})}, nil
	}

	out := make([]string, 0, variants)
	for i := 0; i < variants; i++ {
		idx := i
		out = append(out, render(prompt, tags, func(t Tag) string {
			v := resolved[t.Raw]
			if v.IsList {
				return v.List[idx]
			}
			return v.Scalar
		}))
	}
	return Expansion{Variants: out, IsList: true}, nil
}

func render(prompt string, tags []Tag, content func(Tag) string) string {
	var b strings.Builder
	b.Grow(len(prompt))
	last := 0
	for _, t := range tags {
		b.WriteString(prompt[last:t.Start])
		if c := content(t); c != "" {
			b.WriteString(t.Prefix)
			b.WriteString(c)
			b.WriteString(t.Suffix)
		}
		last = t.End
	}
	b.WriteString(prompt[last:])
	return b.String()
}
