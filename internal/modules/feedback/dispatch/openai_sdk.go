package dispatch

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/vault"
)

// OpenAI uses the official SDK. Retries stay with the dispatcher.
type OpenAI struct {
	name       string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewOpenAI(name string, opts HTTPOptions) *OpenAI {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = defaultHTTPClient()
	}
	return &OpenAI{
		name:       name,
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		timeout:    timeout,
		httpClient: client,
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) client(cred vault.Credential, timeout time.Duration) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cred.APIKey),
		option.WithHTTPClient(o.httpClient),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		opts = append(opts, option.WithBaseURL(o.baseURL+"/"))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return openai.NewClient(opts...)
}

func (o *OpenAI) params(req Request) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if s := strings.TrimSpace(req.SystemPrompt); s != "" {
		msgs = append(msgs, openai.SystemMessage(s))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))
	p := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: msgs,
	}
	if req.Temperature != nil {
		p.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		p.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return p
}

func (o *OpenAI) Complete(ctx context.Context, cred vault.Credential, req Request) (string, error) {
	c := o.client(cred, o.timeout)
	resp, err := c.Chat.Completions.New(ctx, o.params(req))
	if err != nil {
		return "", mapSDKError(err)
	}
	for _, choice := range resp.Choices {
		if strings.TrimSpace(choice.Message.Content) != "" {
			return choice.Message.Content, nil
		}
	}
	return "", ErrEmptyCompletion
}

func (o *OpenAI) Stream(ctx context.Context, cred vault.Credential, req Request, onDelta func(string)) (string, error) {
	c := o.client(cred, 0)
	stream := c.Chat.Completions.NewStreaming(ctx, o.params(req))
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if delta := choice.Delta.Content; delta != "" {
				full.WriteString(delta)
				onDelta(delta)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return full.String(), mapSDKError(err)
	}
	return full.String(), nil
}

func mapSDKError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &HTTPError{StatusCode: apiErr.StatusCode, Body: apiErr.Message}
	}
	return err
}
