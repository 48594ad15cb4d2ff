package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/mergetag"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/modifier"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/sink"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/vault"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
)

const DefaultConcurrency = 5

const (
	ModeStream = "stream"
	ModePool   = "pool"
)

type Options struct {
	Retry RetryPolicy
	// Concurrency caps in-flight pooled requests; a step's own concurrency wins when set.
	Concurrency int
	Recorder    CallRecorder
}

type Dispatcher struct {
	providers   *Registry
	vault       vault.Vault
	retry       RetryPolicy
	concurrency int
	recorder    CallRecorder
	log         *logger.Logger
	tracer      trace.Tracer
}

func New(providers *Registry, v vault.Vault, opts Options, log *logger.Logger) *Dispatcher {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Dispatcher{
		providers:   providers,
		vault:       v,
		retry:       opts.Retry,
		concurrency: concurrency,
		recorder:    rec,
		log:         log.With("component", "Dispatcher"),
		tracer:      otel.Tracer("essayfeed/dispatch"),
	}
}

type VariantResult struct {
	Index   int
	Content string
	Err     error
}

type Result struct {
	// Content is the streamed text, or the pooled variants joined in index order with inline
	// error markers for failed indices.
	Content    string
	Variants   []VariantResult
	Successful int
	Failed     int
	Streamed   bool
	// Err is the streamed request failure; Content then holds whatever arrived before it.
	Err error
}

// VariantContents returns each variant's output by index, empty for failures.
func (r *Result) VariantContents() []string {
	out := make([]string, len(r.Variants))
	for i, v := range r.Variants {
		if v.Err == nil {
			out[i] = v.Content
		}
	}
	return out
}

// Run streams a single expansion and pools a list expansion.
func (d *Dispatcher) Run(ctx context.Context, step feed.Step, meta CallMeta, exp mergetag.Expansion, s sink.Sink) (*Result, error) {
	if exp.IsList {
		return d.Pool(ctx, step, meta, exp.Variants, s)
	}
	return d.Single(ctx, step, meta, exp.Single, s)
}

// Single streams one prompt, forwarding every delta as a step content event. A failed request is
// not returned as an error: the partial content and the failure come back in the Result.
func (d *Dispatcher) Single(ctx context.Context, step feed.Step, meta CallMeta, prompt string, s sink.Sink) (*Result, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.stream", trace.WithAttributes(
		attribute.String("step.type", string(step.Type)),
		attribute.String("provider", step.Config.Provider),
		attribute.String("model", step.Config.Model),
	))
	defer span.End()

	p, cred, err := d.prepare(ctx, step.Config.Provider, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	event := step.Type.EventName()
	emitted := 0
	onDelta := func(delta string) {
		emitted++
		s.Emit(event, map[string]any{"content": delta}, false)
	}

	req := requestFor(step.Config, prompt)
	start := time.Now()
	var (
		content  string
		attempts int
	)
	for {
		attempts++
		content, err = p.Stream(ctx, cred, req, onDelta)
		// Once a delta has reached the sink a retry would duplicate it.
		if err == nil || emitted > 0 || attempts >= d.retry.attempts() || !d.retry.retryable(err) {
			break
		}
		d.log.Debug("retrying streamed request", "provider", p.Name(), "attempt", attempts, "error", err)
		if werr := d.retry.wait(ctx, attempts); werr != nil {
			break
		}
	}

	d.recorder.Record(ctx, Call{
		FeedID:   meta.FeedID,
		EssayID:  meta.EssayID,
		StepType: string(step.Type),
		Provider: p.Name(),
		Model:    req.Model,
		Mode:     ModeStream,
		Attempts: attempts,
		Prompt:   prompt,
		Response: content,
		Err:      err,
		Latency:  time.Since(start),
	})

	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}

	res := &Result{Content: content, Streamed: true}
	if err != nil {
		res.Err = err
		res.Failed = 1
		span.RecordError(err)
		d.log.Warn("streamed request failed", "provider", p.Name(), "attempts", attempts, "deltas", emitted, "error", err)
		s.Emit(event, map[string]any{"error": err.Error()}, true)
		return res, nil
	}
	res.Successful = 1
	return res, nil
}

// Pool sends every prompt as a non-streamed request, at most the concurrency cap in flight. A
// failed index never cancels its siblings.
func (d *Dispatcher) Pool(ctx context.Context, step feed.Step, meta CallMeta, prompts []string, s sink.Sink) (*Result, error) {
	total := len(prompts)
	limit := d.concurrency
	if step.Config.Concurrency > 0 {
		limit = step.Config.Concurrency
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.pool", trace.WithAttributes(
		attribute.String("step.type", string(step.Type)),
		attribute.String("provider", step.Config.Provider),
		attribute.Int("total", total),
		attribute.Int("concurrency", limit),
	))
	defer span.End()

	p, _, err := d.prepare(ctx, step.Config.Provider, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.Emit(sink.EventBatchProcessing, map[string]any{
		"step_type":   string(step.Type),
		"total":       total,
		"concurrency": limit,
	}, false)

	event := step.Type.EventName()
	results := make([]VariantResult, total)
	var (
		mu        sync.Mutex
		processed int
	)

	var g errgroup.Group
	g.SetLimit(limit)
	for i, prompt := range prompts {
		g.Go(func() error {
			content, err := d.request(ctx, p, step, meta, i, prompt)

			mu.Lock()
			defer mu.Unlock()
			processed++
			progress := float64(processed) / float64(total)
			results[i] = VariantResult{Index: i, Content: content, Err: err}
			if err != nil {
				s.Emit(sink.EventParallelError, map[string]any{
					"index":     i,
					"error":     err.Error(),
					"processed": processed,
					"total":     total,
					"progress":  progress,
				}, true)
				return nil
			}
			s.Emit(sink.EventParallelProgress, map[string]any{
				"index":     i,
				"processed": processed,
				"total":     total,
				"progress":  progress,
			}, false)
			s.Emit(event, map[string]any{"content": content, "index": i}, false)
			return nil
		})
	}
	_ = g.Wait()

	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}

	res := &Result{Variants: results}
	parts := make([]string, total)
	for i, r := range results {
		if r.Err != nil {
			res.Failed++
			parts[i] = fmt.Sprintf("Error processing prompt #%d: %s", i, r.Err.Error())
			continue
		}
		res.Successful++
		parts[i] = r.Content
	}
	res.Content = strings.Join(parts, modifier.Separator)

	s.Emit(sink.EventParallelComplete, map[string]any{
		"total":      total,
		"successful": res.Successful,
		"failed":     res.Failed,
	}, false)
	span.SetAttributes(attribute.Int("successful", res.Successful), attribute.Int("failed", res.Failed))
	return res, nil
}

func (d *Dispatcher) request(ctx context.Context, p Provider, step feed.Step, meta CallMeta, index int, prompt string) (string, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.request", trace.WithAttributes(
		attribute.String("provider", p.Name()),
		attribute.Int("index", index),
	))
	defer span.End()

	req := requestFor(step.Config, prompt)
	start := time.Now()
	var (
		content  string
		err      error
		attempts int
	)
	if err = ctx.Err(); err == nil {
		var cred vault.Credential
		cred, err = d.credential(ctx, p.Name(), true)
		for err == nil {
			attempts++
			content, err = p.Complete(ctx, cred, req)
			if err == nil || attempts >= d.retry.attempts() || !d.retry.retryable(err) {
				break
			}
			d.log.Debug("retrying request", "provider", p.Name(), "index", index, "attempt", attempts, "error", err)
			if werr := d.retry.wait(ctx, attempts); werr != nil {
				break
			}
		}
	}

	if attempts > 0 {
		d.recorder.Record(ctx, Call{
			FeedID:       meta.FeedID,
			EssayID:      meta.EssayID,
			StepType:     string(step.Type),
			Provider:     p.Name(),
			Model:        req.Model,
			Mode:         ModePool,
			VariantIndex: index,
			Attempts:     attempts,
			Prompt:       prompt,
			Response:     content,
			Err:          err,
			Latency:      time.Since(start),
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !errors.Is(err, context.Canceled) {
			d.log.Warn("pooled request failed", "provider", p.Name(), "index", index, "attempts", attempts, "error", err)
		}
		return "", err
	}
	return content, nil
}

// prepare resolves the provider and checks a credential exists before any request goes out.
func (d *Dispatcher) prepare(ctx context.Context, provider string, increment bool) (Provider, vault.Credential, error) {
	p, err := d.providers.Get(provider)
	if err != nil {
		return nil, vault.Credential{}, err
	}
	cred, err := d.credential(ctx, p.Name(), increment)
	if err != nil {
		return nil, vault.Credential{}, err
	}
	return p, cred, nil
}

func (d *Dispatcher) credential(ctx context.Context, provider string, increment bool) (vault.Credential, error) {
	cred, err := d.vault.GetCredential(ctx, provider, increment)
	if err != nil {
		return vault.Credential{}, fmt.Errorf("%w: %s: %v", ErrCredential, provider, err)
	}
	return cred, nil
}

func requestFor(cfg feed.StepConfig, prompt string) Request {
	return Request{
		Prompt:       prompt,
		SystemPrompt: cfg.SystemPrompt,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	}
}
