package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	SectionGeneral  = "general-setting"
	SectionAdvanced = "advanced-setting"
)

type StepConfig struct {
	Prompt       string
	SystemPrompt string
	Provider     string
	Model        string
	// Temperature is nil when the provider default applies.
	Temperature *float64
	MaxTokens   int
	// Concurrency overrides the dispatcher's pooled cap when > 0.
	Concurrency int
	// Extra keeps every section.field the builder does not model.
	Extra map[string]map[string]any
}

type StepConfigBuilder struct {
	cfg  StepConfig
	errs []string
}

func NewStepConfigBuilder() *StepConfigBuilder {
	return &StepConfigBuilder{cfg: StepConfig{Extra: map[string]map[string]any{}}}
}

func (b *StepConfigBuilder) Prompt(v string) *StepConfigBuilder       { b.cfg.Prompt = v; return b }
func (b *StepConfigBuilder) SystemPrompt(v string) *StepConfigBuilder { b.cfg.SystemPrompt = v; return b }
func (b *StepConfigBuilder) Provider(v string) *StepConfigBuilder {
	b.cfg.Provider = strings.ToLower(strings.TrimSpace(v))
	return b
}
func (b *StepConfigBuilder) Model(v string) *StepConfigBuilder { b.cfg.Model = strings.TrimSpace(v); return b }
func (b *StepConfigBuilder) Temperature(v float64) *StepConfigBuilder {
	b.cfg.Temperature = &v
	return b
}
func (b *StepConfigBuilder) MaxTokens(v int) *StepConfigBuilder   { b.cfg.MaxTokens = v; return b }
func (b *StepConfigBuilder) Concurrency(v int) *StepConfigBuilder { b.cfg.Concurrency = v; return b }

// Sections reads the stored section.field map.
func (b *StepConfigBuilder) Sections(sections map[string]map[string]any) *StepConfigBuilder {
	for section, fields := range sections {
		for field, value := range fields {
			b.set(section, field, value)
		}
	}
	return b
}

func (b *StepConfigBuilder) set(section, field string, value any) {
	switch section + "." + field {
	case SectionGeneral + ".englishPrompt":
		b.Prompt(asString(value))
	case SectionGeneral + ".systemPrompt":
		b.SystemPrompt(asString(value))
	case SectionGeneral + ".apiProvider":
		b.Provider(asString(value))
	case SectionGeneral + ".model":
		b.Model(asString(value))
	case SectionAdvanced + ".temperature":
		if asString(value) == "" {
			return
		}
		f, err := asFloat(value)
		if err != nil {
			b.errs = append(b.errs, "advanced-setting.temperature: "+err.Error())
			return
		}
		b.Temperature(f)
	case SectionAdvanced + ".maxToken":
		if asString(value) == "" {
			return
		}
		f, err := asFloat(value)
		if err != nil {
			b.errs = append(b.errs, "advanced-setting.maxToken: "+err.Error())
			return
		}
		b.MaxTokens(int(f))
	case SectionAdvanced + ".concurrency":
		if asString(value) == "" {
			return
		}
		f, err := asFloat(value)
		if err != nil {
			b.errs = append(b.errs, "advanced-setting.concurrency: "+err.Error())
			return
		}
		b.Concurrency(int(f))
	default:
		if b.cfg.Extra[section] == nil {
			b.cfg.Extra[section] = map[string]any{}
		}
		b.cfg.Extra[section][field] = value
	}
}

func (b *StepConfigBuilder) Build() (StepConfig, error) {
	errs := append([]string(nil), b.errs...)
	if strings.TrimSpace(b.cfg.Prompt) == "" {
		errs = append(errs, "general-setting.englishPrompt is required")
	}
	if b.cfg.Provider == "" {
		errs = append(errs, "general-setting.apiProvider is required")
	}
	if b.cfg.Model == "" {
		errs = append(errs, "general-setting.model is required")
	}
	if b.cfg.Temperature != nil && (*b.cfg.Temperature < 0 || *b.cfg.Temperature > 2) {
		errs = append(errs, "advanced-setting.temperature must be within [0, 2]")
	}
	if b.cfg.MaxTokens < 0 {
		errs = append(errs, "advanced-setting.maxToken must be >= 0")
	}
	if b.cfg.Concurrency < 0 {
		errs = append(errs, "advanced-setting.concurrency must be >= 0")
	}
	if len(errs) > 0 {
		return StepConfig{}, fmt.Errorf("%w: %s", ErrInvalidStep, strings.Join(errs, "; "))
	}
	return b.cfg, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func asFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	default:
		return strconv.ParseFloat(asString(v), 64)
	}
}
