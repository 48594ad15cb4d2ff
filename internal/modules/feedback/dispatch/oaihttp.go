package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/vault"
)

// OAIHTTP talks to any OpenAI-compatible chat completions endpoint (OpenRouter, DeepSeek, vLLM...).
type OAIHTTP struct {
	name                string
	baseURL             string
	chatCompletionsPath string
	timeout             time.Duration
	streamTimeout       time.Duration
	httpClient          *http.Client
}

type HTTPOptions struct {
	BaseURL       string
	Path          string
	APIVersion    string
	Timeout       time.Duration
	StreamTimeout time.Duration
	HTTPClient    *http.Client
}

func NewOAIHTTP(name string, opts HTTPOptions) (*OAIHTTP, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("oai_http: base_url required")
	}
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = "/v1/chat/completions"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = defaultHTTPClient()
	}
	return &OAIHTTP{
		name:                name,
		baseURL:             baseURL,
		chatCompletionsPath: path,
		timeout:             timeout,
		streamTimeout:       opts.StreamTimeout,
		httpClient:          client,
	}, nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Transport: &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}}
}

func (p *OAIHTTP) Name() string { return p.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

func buildChatRequest(req Request, stream bool) chatCompletionRequest {
	msgs := make([]chatMessage, 0, 2)
	if s := strings.TrimSpace(req.SystemPrompt); s != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: s})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})
	return chatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

func (p *OAIHTTP) Complete(ctx context.Context, cred vault.Credential, req Request) (string, error) {
	body, err := p.post(ctx, cred, buildChatRequest(req, false), p.timeout, "application/json")
	if err != nil {
		return "", err
	}
	defer body.Close()
	raw, err := io.ReadAll(io.LimitReader(body, 16<<20))
	if err != nil {
		return "", err
	}
	return extractCompletion(raw)
}

func (p *OAIHTTP) Stream(ctx context.Context, cred vault.Credential, req Request, onDelta func(string)) (string, error) {
	body, err := p.post(ctx, cred, buildChatRequest(req, true), p.streamTimeout, "text/event-stream")
	if err != nil {
		return "", err
	}
	defer body.Close()

	var full strings.Builder
	err = readSSE(body, func(_ string, data string) error {
		data = strings.TrimSpace(data)
		if data == "" {
			return nil
		}
		if data == "[DONE]" {
			return errStopStream
		}
		if !gjson.Valid(data) {
			return nil
		}
		if e := gjson.Get(data, "error"); e.Exists() {
			return &StreamError{Message: upstreamMessage(e)}
		}
		gjson.Get(data, "choices").ForEach(func(_, c gjson.Result) bool {
			delta := c.Get("delta.content").String()
			if delta == "" {
				delta = c.Get("text").String()
			}
			if delta != "" {
				full.WriteString(delta)
				onDelta(delta)
			}
			return true
		})
		return nil
	})
	if err != nil {
		return full.String(), err
	}
	return full.String(), nil
}

func extractCompletion(raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", errors.New("malformed upstream response")
	}
	doc := gjson.ParseBytes(raw)
	if e := doc.Get("error"); e.Exists() && e.Type != gjson.Null {
		return "", &StreamError{Message: upstreamMessage(e)}
	}
	var text string
	doc.Get("choices").ForEach(func(_, c gjson.Result) bool {
		if s := c.Get("message.content").String(); strings.TrimSpace(s) != "" {
			text = s
			return false
		}
		if s := c.Get("text").String(); strings.TrimSpace(s) != "" {
			text = s
			return false
		}
		return true
	})
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func upstreamMessage(e gjson.Result) string {
	if m := e.Get("message").String(); m != "" {
		return m
	}
	return e.Raw
}

// post sends the JSON body and returns the response body for 2xx responses. The per-request
// timeout is released when the body is closed.
func (p *OAIHTTP) post(ctx context.Context, cred vault.Credential, payload any, timeout time.Duration, accept string) (io.ReadCloser, error) {
	headers := http.Header{}
	headers.Set("Accept", accept)
	if cred.APIKey != "" {
		headers.Set("Authorization", "Bearer "+cred.APIKey)
	}
	return postJSON(ctx, p.httpClient, p.baseURL+p.chatCompletionsPath, headers, payload, timeout)
}

func postJSON(ctx context.Context, client *http.Client, url string, headers http.Header, payload any, timeout time.Duration) (io.ReadCloser, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, err
	}

	ctx2, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		ctx2, cancel = context.WithTimeout(ctx, timeout)
	}

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, url, &buf)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header = headers.Clone()
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		cancel()
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
