package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/essayfeed-backend/internal/config"
	"github.com/yungbote/essayfeed-backend/internal/jobs/runtime"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/sink"
	"github.com/yungbote/essayfeed-backend/internal/observability"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/repos"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

// SinkFactory returns where a job's events go, typically a bus sink on job.Channel().
type SinkFactory func(job *types.JobRun) sink.Sink

type Worker struct {
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	sinks    SinkFactory
	cfg      config.WorkerConfig
	metrics  *observability.Metrics
	wg       sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, sinks SinkFactory, cfg config.WorkerConfig) *Worker {
	if sinks == nil {
		sinks = func(*types.JobRun) sink.Sink { return sink.Discard }
	}
	if cfg.PollInterval.Duration <= 0 {
		cfg.PollInterval.Duration = time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.StaleAfter.Duration <= 0 {
		cfg.StaleAfter.Duration = 2 * time.Minute
	}
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		sinks:    sinks,
		cfg:      cfg,
	}
}

// WithMetrics records each finished run. A nil m disables recording.
func (w *Worker) WithMetrics(m *observability.Metrics) *Worker {
	w.metrics = m
	return w
}

// Start launches the claim loops. They stop when ctx is cancelled; Wait blocks until they have.
func (w *Worker) Start(ctx context.Context) {
	concurrency := w.cfg.Concurrency
	if concurrency < 1 {
		w.log.Info("Job worker disabled")
		return
	}
	w.log.Info("Starting job worker pool", "concurrency", concurrency, "job_types", w.registry.Types())

	for i := 0; i < concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for ctx.Err() == nil {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// RunOnce claims one runnable job and runs it to completion. It reports whether a job was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextRunnable(ctx, nil, w.cfg.MaxAttempts, w.cfg.RetryDelay.Duration, w.cfg.StaleAfter.Duration)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	start := time.Now()
	jc := runtime.NewContext(ctx, job, w.repo, w.sinks(job), w.cfg.MaxAttempts, w.log)
	defer func() { w.metrics.ObserveJob(job.JobType, job.Status, time.Since(start)) }()

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType}, false)
		return true, nil
	}

	stop := w.heartbeat(ctx, job)
	defer stop()

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
				jc.Fail("panic", &panicError{Val: r}, true)
			}
		}()
		if runErr := h.Run(jc); runErr != nil {
			// Handlers normally call jc.Fail themselves.
			jc.Fail("run", runErr, true)
		}
	}()
	return true, nil
}

// heartbeat keeps the job's heartbeat fresh so other workers do not reclaim it as stale.
func (w *Worker) heartbeat(ctx context.Context, job *types.JobRun) func() {
	every := w.cfg.StaleAfter.Duration / 3
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(hbCtx, nil, job.ID); err != nil && hbCtx.Err() == nil {
					w.log.Warn("Heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
