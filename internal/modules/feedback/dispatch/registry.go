package dispatch

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/yungbote/essayfeed-backend/internal/config"
)

// Registry maps lowercase provider names to providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// RegistryFromConfig builds one provider per configured entry. client may be nil.
func RegistryFromConfig(cfg map[string]config.ProviderConfig, d config.DispatchConfig, client *http.Client) (*Registry, error) {
	r := NewRegistry()
	for name, pc := range cfg {
		name = strings.ToLower(strings.TrimSpace(name))
		opts := HTTPOptions{
			BaseURL:       pc.BaseURL,
			Path:          pc.ChatCompletionsPath,
			APIVersion:    pc.APIVersion,
			Timeout:       d.Timeout.Duration,
			StreamTimeout: d.StreamTimeout.Duration,
			HTTPClient:    client,
		}
		switch pc.Type {
		case "oai_http":
			p, err := NewOAIHTTP(name, opts)
			if err != nil {
				return nil, fmt.Errorf("provider %q: %w", name, err)
			}
			r.Register(p)
		case "anthropic":
			r.Register(NewAnthropic(name, opts))
		case "openai":
			r.Register(NewOpenAI(name, opts))
		default:
			return nil, fmt.Errorf("provider %q: unsupported type %q", name, pc.Type)
		}
	}
	return r, nil
}

func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToLower(strings.TrimSpace(p.Name()))] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
