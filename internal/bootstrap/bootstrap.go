// Package bootstrap wires the pipeline service from configuration for the
// api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"adflow/internal/adapter/repo"
	"adflow/internal/claim"
	"adflow/internal/domain"
	"adflow/internal/infra"
	"adflow/internal/pipeline"
	"adflow/internal/providers/analysis"
	"adflow/internal/providers/meta"
	"adflow/internal/providers/taskapi"
	"adflow/internal/storage"
	"adflow/internal/store/memstore"
)

// Runtime is a wired service plus what its owner must manage.
type Runtime struct {
	Service *pipeline.Service
	Files   *storage.FileStore
	// DB is nil for the memory driver.
	DB    infra.SQLExecutor
	Ready func(ctx context.Context) error
	close func()
}

// Close releases the database pool, if any.
func (r *Runtime) Close() {
	if r.close != nil {
		r.close()
	}
}

type repositories interface {
	claim.Store
	domain.ImageJobRepository
	domain.TranslationRepository
	domain.ABTestRepository
	domain.CampaignRepository
}

// Build opens the configured store and constructs every client. Providers
// without credentials are left out so their operations fail with a clear
// upstream error instead of calling out unauthenticated.
func Build(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*Runtime, error) {
	rt := &Runtime{}

	var store repositories
	switch cfg.StoreDriver {
	case infra.StoreDriverMemory:
		logger.Warn().Msg("bootstrap: using in-memory store, state is lost on exit")
		store = memstore.New()
	default:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		runner := infra.NewSQLRunner(pool, logger)
		store = repo.NewStore(runner)
		rt.DB = runner
		rt.Ready = pool.Ping
		rt.close = pool.Close
	}

	files, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("bootstrap: storage: %w", err)
	}
	rt.Files = files

	deps := pipeline.Deps{
		Claims:    claim.NewCoordinator(store, claim.Options{Logger: &logger}),
		Images:    store,
		Pages:     store,
		ABTests:   store,
		Campaigns: store,
		Objects:   files,
		Downloads: storage.NewFetcher(&http.Client{Timeout: 60 * time.Second}, 3, time.Second),
		Publisher: pipeline.StorePublisher{Objects: files},
		Logger:    &logger,
	}

	tasks := taskapi.NewClient(taskapi.Options{
		APIKey:  cfg.TaskAPIKey,
		BaseURL: cfg.TaskAPIBaseURL,
		Model:   cfg.TaskModel,
		Logger:  &logger,
	})
	if tasks.HasCredentials() {
		deps.Tasks = tasks
	} else {
		logger.Warn().Msg("bootstrap: TASK_API_KEY not set, image generation disabled")
	}

	openai := analysis.NewClient(analysis.Options{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	if openai.HasCredentials() {
		deps.Analyzer = openai
		deps.Translator = openai
	} else {
		logger.Warn().Msg("bootstrap: OPENAI_API_KEY not set, page translation and analysis disabled")
	}

	ads := meta.NewClient(meta.Options{
		AccessToken: cfg.MetaAccessToken,
		AdAccountID: cfg.MetaAdAccountID,
		PageID:      cfg.MetaPageID,
		BaseURL:     cfg.MetaBaseURL,
		Logger:      &logger,
	})
	if ads.HasCredentials() {
		deps.Ads = ads
	} else {
		logger.Warn().Msg("bootstrap: META_ACCESS_TOKEN not set, campaign push disabled")
	}

	svc, err := pipeline.NewService(deps, pipeline.SettingsFromConfig(cfg))
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}
