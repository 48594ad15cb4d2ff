package dispatch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/vault"
)

const (
	anthropicDefaultBaseURL   = "https://api.anthropic.com/v1"
	anthropicDefaultVersion   = "2023-06-01"
	anthropicDefaultMaxTokens = 4096
)

// Anthropic speaks the Messages API.
type Anthropic struct {
	name          string
	baseURL       string
	path          string
	version       string
	timeout       time.Duration
	streamTimeout time.Duration
	httpClient    *http.Client
}

func NewAnthropic(name string, opts HTTPOptions) *Anthropic {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = "/messages"
	}
	version := strings.TrimSpace(opts.APIVersion)
	if version == "" {
		version = anthropicDefaultVersion
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = defaultHTTPClient()
	}
	return &Anthropic{
		name:          name,
		baseURL:       baseURL,
		path:          path,
		version:       version,
		timeout:       timeout,
		streamTimeout: opts.StreamTimeout,
		httpClient:    client,
	}
}

func (a *Anthropic) Name() string { return a.name }

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

func (a *Anthropic) buildRequest(req Request, stream bool) anthropicRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	return anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		System:      strings.TrimSpace(req.SystemPrompt),
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

func (a *Anthropic) headers(cred vault.Credential, accept string) http.Header {
	h := http.Header{}
	h.Set("Accept", accept)
	h.Set("x-api-key", cred.APIKey)
	h.Set("anthropic-version", a.version)
	return h
}

func (a *Anthropic) Complete(ctx context.Context, cred vault.Credential, req Request) (string, error) {
	body, err := postJSON(ctx, a.httpClient, a.baseURL+a.path, a.headers(cred, "application/json"), a.buildRequest(req, false), a.timeout)
	if err != nil {
		return "", err
	}
	defer body.Close()
	raw, err := io.ReadAll(io.LimitReader(body, 16<<20))
	if err != nil {
		return "", err
	}
	if !gjson.ValidBytes(raw) {
		return "", &StreamError{Message: "malformed upstream response"}
	}
	doc := gjson.ParseBytes(raw)
	if e := doc.Get("error"); e.Exists() && e.Type != gjson.Null {
		return "", &StreamError{Message: upstreamMessage(e)}
	}
	var b strings.Builder
	for _, t := range doc.Get(`content.#(type=="text")#.text`).Array() {
		b.WriteString(t.String())
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyCompletion
	}
	return b.String(), nil
}

func (a *Anthropic) Stream(ctx context.Context, cred vault.Credential, req Request, onDelta func(string)) (string, error) {
	body, err := postJSON(ctx, a.httpClient, a.baseURL+a.path, a.headers(cred, "text/event-stream"), a.buildRequest(req, true), a.streamTimeout)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var full strings.Builder
	err = readSSE(body, func(_ string, data string) error {
		data = strings.TrimSpace(data)
		if data == "" || !gjson.Valid(data) {
			return nil
		}
		switch gjson.Get(data, "type").String() {
		case "content_block_delta":
			if delta := gjson.Get(data, "delta.text").String(); delta != "" {
				full.WriteString(delta)
				onDelta(delta)
			}
		case "message_stop":
			return errStopStream
		case "error":
			return &StreamError{Message: upstreamMessage(gjson.Get(data, "error"))}
		}
		return nil
	})
	return full.String(), err
}
