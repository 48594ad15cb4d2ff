package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op, so callers never branch on
// whether metrics are enabled.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *GaugeVec
	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmRetries  *CounterVec
	jobRuns     *CounterVec
	jobLatency  *HistogramVec
	queueDepth  *GaugeVec
}

func NewMetrics() *Metrics {
	latency := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	slow := []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300}
	return &Metrics{
		apiRequests: NewCounterVec("essayfeed_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("essayfeed_api_request_duration_seconds", "API request latency in seconds.", []string{"method", "route"}, latency),
		apiInflight: NewGaugeVec("essayfeed_api_inflight_requests", "In-flight API requests.", nil),
		llmRequests: NewCounterVec("essayfeed_llm_requests_total", "Upstream completion requests by provider/model/mode/status.", []string{"provider", "model", "mode", "status"}),
		llmLatency:  NewHistogramVec("essayfeed_llm_request_duration_seconds", "Upstream request latency in seconds, retries included.", []string{"provider", "mode"}, slow),
		llmRetries:  NewCounterVec("essayfeed_llm_retries_total", "Retried upstream attempts by provider.", []string{"provider"}),
		jobRuns:     NewCounterVec("essayfeed_job_runs_total", "Finished job runs by type/status.", []string{"job_type", "status"}),
		jobLatency:  NewHistogramVec("essayfeed_job_run_duration_seconds", "Job run duration in seconds.", []string{"job_type"}, slow),
		queueDepth:  NewGaugeVec("essayfeed_job_queue_depth", "Job runs by status.", []string{"status"}),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmRetries,
		m.jobRuns, m.jobLatency, m.queueDepth,
	}
	for _, pw := range writers {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

// StartServer serves /metrics on its own listener until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", m.WriteHTTP)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

// ObserveLLMRequest records one upstream request after its last attempt.
func (m *Metrics) ObserveLLMRequest(provider, model, mode string, ok bool, attempts int, dur time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	m.llmRequests.Inc(provider, model, mode, status)
	m.llmLatency.Observe(dur.Seconds(), provider, mode)
	if attempts > 1 {
		m.llmRetries.Add(float64(attempts-1), provider)
	}
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.Inc(jobType, status)
	m.jobLatency.Observe(dur.Seconds(), jobType)
}

// StartJobQueueCollector samples job_run counts by status every interval until ctx is done.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.collectQueueDepth(ctx, db); err != nil && ctx.Err() == nil {
					log.Warn("metrics: job queue depth query failed", "error", err)
				}
			}
		}
	}()
}

func (m *Metrics) collectQueueDepth(ctx context.Context, db *gorm.DB) error {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&types.JobRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range []string{types.JobStatusQueued, types.JobStatusRunning, types.JobStatusSucceeded, types.JobStatusFailed} {
		m.queueDepth.Set(0, s)
	}
	for _, row := range rows {
		m.queueDepth.Set(float64(row.Count), row.Status)
	}
	return nil
}
