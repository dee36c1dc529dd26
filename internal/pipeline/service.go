// Package pipeline runs the claimed units of work of the content pipeline:
// image expansion and translation, page translation and quality fixes, A/B
// tests and campaign pushes. Every status change goes through the claim
// coordinator; the service holds no state between calls.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"adflow/internal/aggregate"
	"adflow/internal/claim"
	"adflow/internal/domain"
	"adflow/internal/infra"
	"adflow/internal/providers/analysis"
	"adflow/internal/providers/meta"
	"adflow/internal/providers/taskapi"
)

// Settings are the tunables of one pipeline instance.
type Settings struct {
	PollInterval     time.Duration
	MaxWait          time.Duration
	StaleAfter       time.Duration
	PushConcurrency  int
	SweepConcurrency int
	Resolution       string
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		PollInterval:     taskapi.DefaultPollInterval,
		MaxWait:          taskapi.DefaultMaxWait,
		StaleAfter:       10 * time.Minute,
		PushConcurrency:  3,
		SweepConcurrency: 2,
		Resolution:       "2K",
	}
}

// SettingsFromConfig maps the environment configuration onto Settings.
func SettingsFromConfig(cfg *infra.Config) Settings {
	return Settings{
		PollInterval:     cfg.TaskPollInterval,
		MaxWait:          cfg.TaskMaxWait,
		StaleAfter:       cfg.ClaimStaleAfter,
		PushConcurrency:  cfg.PushConcurrency,
		SweepConcurrency: cfg.SweepConcurrency,
		Resolution:       cfg.ImageResolution,
	}.withDefaults()
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.PollInterval <= 0 {
		s.PollInterval = d.PollInterval
	}
	if s.MaxWait <= 0 {
		s.MaxWait = d.MaxWait
	}
	if s.StaleAfter <= 0 {
		s.StaleAfter = d.StaleAfter
	}
	if s.PushConcurrency <= 0 {
		s.PushConcurrency = d.PushConcurrency
	}
	if s.SweepConcurrency <= 0 {
		s.SweepConcurrency = d.SweepConcurrency
	}
	if s.Resolution == "" {
		s.Resolution = d.Resolution
	}
	return s
}

// TaskRunner is the asynchronous generation API.
type TaskRunner interface {
	Submit(ctx context.Context, spec taskapi.TaskSpec) (string, error)
	AwaitResult(ctx context.Context, taskID string, pollInterval, maxWait time.Duration) taskapi.Result
}

// ObjectStore stores generated files under stable public URLs.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Read(ctx context.Context, url string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Remove(ctx context.Context, keys []string) error
}

// Downloader fetches remote files.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// Analyzer scores candidate translations.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (domain.QualityAnalysis, error)
}

// Translator translates page markup.
type Translator interface {
	Translate(ctx context.Context, content, language string) (string, error)
}

// Publisher hosts a translated page and returns its public URL.
type Publisher interface {
	Publish(ctx context.Context, t *domain.Translation) (string, error)
}

// AdPlatform is the ad platform API used by campaign pushes.
type AdPlatform interface {
	CreateCampaign(ctx context.Context, spec meta.CampaignSpec) (string, error)
	CreateAdSet(ctx context.Context, spec meta.AdSetSpec) (string, error)
	DuplicateAdSet(ctx context.Context, templateID, campaignID string) (string, error)
	UploadImage(ctx context.Context, filename string, data []byte) (string, error)
	CreateCreative(ctx context.Context, spec meta.CreativeSpec) (string, error)
	CreateAd(ctx context.Context, spec meta.AdSpec) (string, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Claims     *claim.Coordinator
	Images     domain.ImageJobRepository
	Pages      domain.TranslationRepository
	ABTests    domain.ABTestRepository
	Campaigns  domain.CampaignRepository
	Tasks      TaskRunner
	Objects    ObjectStore
	Downloads  Downloader
	Analyzer   Analyzer
	Translator Translator
	Publisher  Publisher
	Ads        AdPlatform
	Logger     *infra.Logger
	Now        func() time.Time
}

// Service executes pipeline operations.
type Service struct {
	Deps
	settings Settings
	advancer *aggregate.Advancer
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService wires a Service. Claims and the repositories are required.
func NewService(deps Deps, settings Settings) (*Service, error) {
	if deps.Claims == nil {
		return nil, errors.New("pipeline: claim coordinator is required")
	}
	if deps.Images == nil || deps.Pages == nil || deps.ABTests == nil || deps.Campaigns == nil {
		return nil, errors.New("pipeline: repositories are required")
	}
	logger := zerolog.New(io.Discard)
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		Deps:     deps,
		settings: settings.withDefaults(),
		advancer: aggregate.NewAdvancer(deps.Claims, &logger),
		logger:   logger,
		now:      now,
	}, nil
}

// Settings returns the effective settings.
func (s *Service) Settings() Settings {
	return s.settings
}

// transition performs an unclaimed move between non-working states. A lost
// race is reported as a conflict.
func (s *Service) transition(ctx context.Context, entity domain.Entity, id string, from []domain.Status, to domain.Status) error {
	ok, err := s.Claims.Claim(ctx, claim.Request{Entity: entity, ID: id, From: from, To: to})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %s changed concurrently", domain.ErrConflict, entity, id)
	}
	return nil
}

// rehost copies a provider result into the object store.
func (s *Service) rehost(ctx context.Context, key, sourceURL string) (string, error) {
	if s.Downloads == nil || s.Objects == nil {
		return "", errors.New("pipeline: object storage is not configured")
	}
	data, contentType, err := s.Downloads.Download(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("fetch result: %w", err)
	}
	if contentType == "" {
		contentType = "image/png"
	}
	url, err := s.Objects.Put(ctx, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("store result: %w", err)
	}
	return url, nil
}

// generate submits a task and waits for it. Provider failures and timeouts
// come back as a failure message rather than an error.
func (s *Service) generate(ctx context.Context, spec taskapi.TaskSpec) (taskID string, urls []string, failure string) {
	if s.Tasks == nil {
		return "", nil, "generation api is not configured"
	}
	taskID, err := s.Tasks.Submit(ctx, spec)
	if err != nil {
		return "", nil, err.Error()
	}
	switch res := s.Tasks.AwaitResult(ctx, taskID, s.settings.PollInterval, s.settings.MaxWait).(type) {
	case taskapi.Success:
		return taskID, res.URLs, ""
	case taskapi.TimedOut:
		s.logger.Warn().Str("task_id", taskID).Dur("elapsed", res.Elapsed).Int("polls", res.Polls).Msg("pipeline: generation timed out")
		return taskID, nil, res.Message()
	default:
		return taskID, nil, res.Message()
	}
}
