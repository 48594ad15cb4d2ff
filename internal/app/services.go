package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/config"
	"github.com/yungbote/essayfeed-backend/internal/jobs/pipeline/feed_run"
	jobruntime "github.com/yungbote/essayfeed-backend/internal/jobs/runtime"
	"github.com/yungbote/essayfeed-backend/internal/jobs/worker"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/dispatch"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/orchestrator"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/resolver"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/sink"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/vault"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/writer"
	"github.com/yungbote/essayfeed-backend/internal/observability"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

type Services struct {
	Vault        vault.Vault
	KeyStore     *vault.StoreVault
	Providers    *dispatch.Registry
	Dispatcher   *dispatch.Dispatcher
	Resolver     *resolver.Resolver
	Writer       *writer.Writer
	Orchestrator *orchestrator.Orchestrator
	JobRegistry  *jobruntime.Registry
	JobWorker    *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg *config.Config, r Repos, c Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	v, keyStore, err := wireVault(cfg.Vault, r, log)
	if err != nil {
		return Services{}, err
	}

	providers, err := dispatch.RegistryFromConfig(cfg.Providers, cfg.Dispatch, nil)
	if err != nil {
		return Services{}, fmt.Errorf("providers: %w", err)
	}

	recorders := dispatch.Recorders{
		dispatch.RecorderFunc(func(_ context.Context, call dispatch.Call) {
			metrics.ObserveLLMRequest(call.Provider, call.Model, call.Mode, call.Err == nil, call.Attempts, call.Latency)
		}),
	}
	if cfg.Dispatch.RecordCalls {
		recorders = append(recorders, dispatch.NewRepoRecorder(r.AICallLog, log))
	}
	dispatcher := dispatch.New(providers, v, dispatch.Options{
		Retry: dispatch.RetryPolicy{
			MaxRetries:       cfg.Dispatch.MaxRetries,
			Backoff:          cfg.Dispatch.RetryBackoff.Duration,
			SkipClientErrors: cfg.Dispatch.SkipClientErrors,
		},
		Concurrency: cfg.Dispatch.Concurrency,
		Recorder:    recorders,
	}, log)

	res := resolver.New(resolver.NewRepoSource(r.Essay, r.Segment, r.EssayFeedback, r.SegmentFeedback), log)
	w := writer.New(db, r.Essay, r.Segment, r.EssayFeedback, r.SegmentFeedback, log)
	orch := orchestrator.New(r.Feed, res, dispatcher, w, log)

	registry := jobruntime.NewRegistry()
	if err := registry.Register(feed_run.New(orch, log)); err != nil {
		return Services{}, err
	}
	jobWorker := worker.NewWorker(log, r.JobRun, registry, func(job *types.JobRun) sink.Sink {
		return sink.NewBus(c.SSEBus, job.Channel(), log)
	}, cfg.Worker).WithMetrics(metrics)

	return Services{
		Vault:        v,
		KeyStore:     keyStore,
		Providers:    providers,
		Dispatcher:   dispatcher,
		Resolver:     res,
		Writer:       w,
		Orchestrator: orch,
		JobRegistry:  registry,
		JobWorker:    jobWorker,
	}, nil
}

// wireVault stacks the encrypted key store (when a master key is set) over the environment.
func wireVault(cfg config.VaultConfig, r Repos, log *logger.Logger) (vault.Vault, *vault.StoreVault, error) {
	var chain vault.Chain
	var store *vault.StoreVault
	if cfg.MasterKey != "" {
		key, err := vault.ParseMasterKey(cfg.MasterKey)
		if err != nil {
			return nil, nil, fmt.Errorf("vault: %w", err)
		}
		store = vault.NewStoreVault(r.APIKey, key, log)
		chain = append(chain, store)
	}
	if cfg.EnvFallback {
		chain = append(chain, vault.NewEnvVault())
	}
	if len(chain) == 0 {
		log.Warn("No credential source configured; every provider request will fail")
	}
	return chain, store, nil
}
