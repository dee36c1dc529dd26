package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"adflow/internal/aggregate"
	"adflow/internal/claim"
	"adflow/internal/domain"
	"adflow/internal/providers/taskapi"
)

// NewImageJob is the intake payload of an image job.
type NewImageJob struct {
	Name       string
	Languages  []string
	Ratios     []domain.Ratio
	SourceURLs []string
}

// CreateJob validates and stores a draft job with pending source images.
func (s *Service) CreateJob(ctx context.Context, in NewImageJob) (*domain.ImageJob, []domain.SourceImage, error) {
	langs, err := canonicalLanguages(in.Languages)
	if err != nil {
		return nil, nil, err
	}
	ratios, err := validRatios(in.Ratios)
	if err != nil {
		return nil, nil, err
	}
	if len(in.SourceURLs) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one source image is required", domain.ErrInvalidInput)
	}
	job := &domain.ImageJob{
		Name:      strings.TrimSpace(in.Name),
		Languages: langs,
		Ratios:    ratios,
		Status:    domain.StatusDraft,
	}
	images := make([]domain.SourceImage, 0, len(in.SourceURLs))
	for i, u := range in.SourceURLs {
		u = strings.TrimSpace(u)
		if u == "" {
			return nil, nil, fmt.Errorf("%w: source image %d has no url", domain.ErrInvalidInput, i)
		}
		images = append(images, domain.SourceImage{Position: i, OriginalURL: u, ExpansionStatus: domain.StatusPending})
	}
	if err := s.Images.CreateJob(ctx, job, images); err != nil {
		return nil, nil, fmt.Errorf("create job: %w", err)
	}
	s.logger.Info().Str("job_id", job.ID).Int("images", len(images)).Strs("languages", langs).Msg("pipeline: job created")
	return job, images, nil
}

// StartExpansion moves a draft job into expansion. Jobs that do not target
// the vertical ratio, or have no images, go straight to ready.
func (s *Service) StartExpansion(ctx context.Context, jobID string) (*domain.ImageJob, error) {
	job, err := s.Images.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	images, err := s.Images.ListSourceImages(ctx, jobID)
	if err != nil {
		return nil, err
	}
	target := domain.StatusExpanding
	if !job.HasRatio(domain.RatioVertical) || len(images) == 0 {
		target = domain.StatusReady
	}
	if err := s.transition(ctx, domain.EntityImageJob, jobID, []domain.Status{domain.StatusDraft}, target); err != nil {
		return nil, err
	}
	return s.Images.GetJob(ctx, jobID)
}

// ExpandSourceImage outpaints one source image to the vertical ratio and
// advances the job to ready once every image has finished.
func (s *Service) ExpandSourceImage(ctx context.Context, imageID string) (*domain.SourceImage, error) {
	img, err := s.Images.GetSourceImage(ctx, imageID)
	if err != nil {
		return nil, err
	}
	job, err := s.Images.GetJob(ctx, img.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusExpanding {
		return nil, fmt.Errorf("%w: job %s is %s, not expanding", domain.ErrInvalidTransition, job.ID, job.Status)
	}
	ticket, err := s.Claims.Acquire(ctx, claim.Request{
		Entity:     domain.EntitySourceImage,
		ID:         imageID,
		From:       []domain.Status{domain.StatusPending, domain.StatusFailed},
		To:         domain.StatusProcessing,
		StaleAfter: s.settings.StaleAfter,
	})
	if err != nil {
		return nil, err
	}

	log := s.logger.With().Str("job_id", job.ID).Str("source_image_id", imageID).Logger()
	out, runErr := s.Claims.Run(ctx, ticket, func(ctx context.Context) (claim.Outcome, error) {
		_, urls, failure := s.generate(ctx, taskapi.TaskSpec{
			Prompt:      expansionPrompt,
			SourceURLs:  []string{img.OriginalURL},
			AspectRatio: string(domain.RatioVertical),
			Resolution:  s.settings.Resolution,
		})
		if failure != "" {
			return claim.Outcome{Status: domain.StatusFailed, Message: failure}, nil
		}
		url, err := s.rehost(ctx, fmt.Sprintf("jobs/%s/expanded/%s", job.ID, imageID), urls[0])
		if err != nil {
			return claim.Outcome{}, err
		}
		if err := s.Images.SetExpandedURL(ctx, imageID, url); err != nil {
			return claim.Outcome{}, err
		}
		return claim.Succeeded(domain.StatusCompleted), nil
	})
	log.Info().Str("status", string(out.Status)).Str("message", out.Message).Msg("pipeline: expansion finished")

	if err := s.advanceExpansion(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("pipeline: expansion aggregate failed")
	}
	if runErr != nil {
		return nil, runErr
	}
	return s.Images.GetSourceImage(ctx, imageID)
}

func (s *Service) advanceExpansion(ctx context.Context, jobID string) error {
	images, err := s.Images.ListSourceImages(ctx, jobID)
	if err != nil {
		return err
	}
	statuses := make([]domain.Status, len(images))
	for i, img := range images {
		statuses[i] = img.ExpansionStatus
	}
	_, _, err = s.advancer.Apply(ctx, aggregate.JobExpansion, jobID, statuses)
	return err
}

// StartTranslations moves a ready job to processing and creates one
// translation per image, language and ratio. Vertical rows only exist for
// images whose expansion completed. Re-running never duplicates rows.
func (s *Service) StartTranslations(ctx context.Context, jobID string) (*domain.ImageJob, int, error) {
	job, err := s.Images.GetJob(ctx, jobID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.transition(ctx, domain.EntityImageJob, jobID, []domain.Status{domain.StatusReady}, domain.StatusProcessing); err != nil {
		return nil, 0, err
	}
	images, err := s.Images.ListSourceImages(ctx, jobID)
	if err != nil {
		return nil, 0, err
	}
	rows := PlanTranslations(job, images)
	inserted, err := s.Images.InsertImageTranslations(ctx, rows)
	if err != nil {
		return nil, 0, fmt.Errorf("insert translations: %w", err)
	}
	s.logger.Info().Str("job_id", jobID).Int("planned", len(rows)).Int("inserted", inserted).Msg("pipeline: translations created")
	if err := s.advanceTranslations(ctx, jobID); err != nil {
		return nil, 0, err
	}
	job, err = s.Images.GetJob(ctx, jobID)
	if err != nil {
		return nil, 0, err
	}
	return job, inserted, nil
}

// PlanTranslations lists the translation rows of a job: every image for the
// square ratio and every successfully expanded image for the vertical one,
// each once per language.
func PlanTranslations(job *domain.ImageJob, images []domain.SourceImage) []domain.ImageTranslation {
	var rows []domain.ImageTranslation
	for _, ratio := range job.Ratios {
		for _, img := range images {
			if ratio == domain.RatioVertical && img.ExpansionStatus != domain.StatusCompleted {
				continue
			}
			for _, lang := range job.Languages {
				rows = append(rows, domain.ImageTranslation{
					JobID:         job.ID,
					SourceImageID: img.ID,
					Language:      lang,
					Ratio:         ratio,
					Status:        domain.StatusPending,
				})
			}
		}
	}
	return rows
}

// ProcessImageTranslation generates one translated image, records it as the
// active version and re-evaluates the job.
func (s *Service) ProcessImageTranslation(ctx context.Context, id string) (*domain.ImageTranslation, error) {
	item, err := s.Images.GetImageTranslation(ctx, id)
	if err != nil {
		return nil, err
	}
	job, err := s.Images.GetJob(ctx, item.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusProcessing {
		return nil, fmt.Errorf("%w: job %s is %s, not processing", domain.ErrInvalidTransition, job.ID, job.Status)
	}
	img, err := s.Images.GetSourceImage(ctx, item.SourceImageID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.Claims.Acquire(ctx, claim.Request{
		Entity:     domain.EntityImageTranslation,
		ID:         id,
		From:       []domain.Status{domain.StatusPending, domain.StatusFailed},
		To:         domain.StatusProcessing,
		StaleAfter: s.settings.StaleAfter,
	})
	if err != nil {
		return nil, err
	}

	log := s.logger.With().Str("job_id", job.ID).Str("image_translation_id", id).Str("language", item.Language).Str("ratio", string(item.Ratio)).Logger()
	out, runErr := s.Claims.Run(ctx, ticket, func(ctx context.Context) (claim.Outcome, error) {
		source := img.OriginalURL
		if item.Ratio == domain.RatioVertical {
			source = img.ExpandedURL
		}
		if source == "" {
			return claim.Outcome{Status: domain.StatusFailed, Message: "source image has no expanded version"}, nil
		}
		started := s.now()
		taskID, urls, failure := s.generate(ctx, taskapi.TaskSpec{
			Prompt:      translationPrompt(item.Language),
			SourceURLs:  []string{source},
			AspectRatio: string(item.Ratio),
			Resolution:  s.settings.Resolution,
		})
		if failure != "" {
			return claim.Outcome{Status: domain.StatusFailed, Message: failure}, nil
		}
		url, err := s.rehost(ctx, fmt.Sprintf("jobs/%s/translations/%s/%s", job.ID, id, taskID), urls[0])
		if err != nil {
			return claim.Outcome{}, err
		}
		version := &domain.Version{
			ImageTranslationID: id,
			URL:                url,
			TaskID:             taskID,
			GenerationDuration: s.now().Sub(started).Round(time.Millisecond),
		}
		if err := s.Images.AppendVersion(ctx, version); err != nil {
			return claim.Outcome{}, err
		}
		if err := s.Images.SetTranslatedURL(ctx, id, url, version.ID); err != nil {
			return claim.Outcome{}, err
		}
		return claim.Succeeded(domain.StatusCompleted), nil
	})
	log.Info().Str("status", string(out.Status)).Str("message", out.Message).Msg("pipeline: image translation finished")

	if err := s.advanceTranslations(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("pipeline: translation aggregate failed")
	}
	if runErr != nil {
		return nil, runErr
	}
	return s.Images.GetImageTranslation(ctx, id)
}

func (s *Service) advanceTranslations(ctx context.Context, jobID string) error {
	items, err := s.Images.ListImageTranslations(ctx, jobID)
	if err != nil {
		return err
	}
	statuses := make([]domain.Status, len(items))
	for i, it := range items {
		statuses[i] = it.Status
	}
	_, _, err = s.advancer.Apply(ctx, aggregate.JobTranslation, jobID, statuses)
	return err
}

// RetryResult reports what a retry reset.
type RetryResult struct {
	Reset     int
	Recovered int
}

// RetryImageTranslations resets failed translations of a job to pending and,
// with includeStale, also abandoned processing ones. A finished job is
// reopened before any child is reset, so a terminal job never has pending
// children.
func (s *Service) RetryImageTranslations(ctx context.Context, jobID string, includeStale bool) (RetryResult, error) {
	var res RetryResult
	if _, err := s.Images.GetJob(ctx, jobID); err != nil {
		return res, err
	}
	items, err := s.Images.ListImageTranslations(ctx, jobID)
	if err != nil {
		return res, err
	}
	cutoff := s.now().Add(-s.settings.StaleAfter)
	var failed, stale []string
	for _, it := range items {
		switch {
		case it.Status == domain.StatusFailed:
			failed = append(failed, it.ID)
		case includeStale && it.Status == domain.StatusProcessing && it.UpdatedAt.Before(cutoff):
			stale = append(stale, it.ID)
		}
	}
	if len(failed)+len(stale) == 0 {
		return res, nil
	}
	if err := s.reopenJob(ctx, jobID); err != nil {
		return res, err
	}

	for _, id := range failed {
		ok, err := s.Claims.Transition(ctx, domain.EntityImageTranslation, id, []domain.Status{domain.StatusFailed}, domain.StatusPending)
		if err != nil {
			return res, err
		}
		if ok {
			res.Reset++
		}
	}
	for _, id := range stale {
		ok, err := s.Claims.RecoverStale(ctx, domain.EntityImageTranslation, id, domain.StatusProcessing, s.settings.StaleAfter, domain.StatusPending)
		if err != nil {
			return res, err
		}
		if ok {
			res.Recovered++
		}
	}
	if res.Reset+res.Recovered == 0 {
		// Every candidate moved on concurrently; close the job again if its
		// children are all terminal.
		return res, s.advanceTranslations(ctx, jobID)
	}
	// A concurrent aggregation may have closed the job between the reopen and
	// the resets.
	if err := s.reopenJob(ctx, jobID); err != nil {
		return res, err
	}
	s.logger.Info().Str("job_id", jobID).Int("reset", res.Reset).Int("recovered", res.Recovered).Msg("pipeline: translations retried")
	return res, nil
}

// reopenJob moves a finished job back to processing. A job that is already
// processing is left as it is.
func (s *Service) reopenJob(ctx context.Context, jobID string) error {
	_, err := s.Claims.Transition(ctx, domain.EntityImageJob, jobID,
		[]domain.Status{domain.StatusCompleted, domain.StatusFailed}, domain.StatusProcessing)
	return err
}

// ActivateVersion makes an earlier version the surfaced one.
func (s *Service) ActivateVersion(ctx context.Context, translationID, versionID string) (*domain.Version, error) {
	return s.Images.ActivateVersion(ctx, translationID, versionID)
}

// ListVersions returns every version of a translation, oldest first.
func (s *Service) ListVersions(ctx context.Context, translationID string) ([]domain.Version, error) {
	if _, err := s.Images.GetImageTranslation(ctx, translationID); err != nil {
		return nil, err
	}
	return s.Images.ListVersions(ctx, translationID)
}

// JobDetail is a job with everything it owns.
type JobDetail struct {
	Job          *domain.ImageJob
	Images       []domain.SourceImage
	Translations []domain.ImageTranslation
}

// GetJob loads a job with its images and translations.
func (s *Service) GetJob(ctx context.Context, jobID string) (*JobDetail, error) {
	job, err := s.Images.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	images, err := s.Images.ListSourceImages(ctx, jobID)
	if err != nil {
		return nil, err
	}
	items, err := s.Images.ListImageTranslations(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobDetail{Job: job, Images: images, Translations: items}, nil
}

// DeleteJob removes a job's stored files and then its rows.
func (s *Service) DeleteJob(ctx context.Context, jobID string) error {
	if _, err := s.Images.GetJob(ctx, jobID); err != nil {
		return err
	}
	if s.Objects != nil {
		keys, err := s.Objects.List(ctx, jobPrefix(jobID))
		if err != nil {
			return fmt.Errorf("list job files: %w", err)
		}
		if err := s.Objects.Remove(ctx, keys); err != nil {
			return fmt.Errorf("remove job files: %w", err)
		}
		s.logger.Info().Str("job_id", jobID).Int("files", len(keys)).Msg("pipeline: job files removed")
	}
	return s.Images.DeleteJob(ctx, jobID)
}

func jobPrefix(jobID string) string {
	return "jobs/" + jobID + "/"
}

const expansionPrompt = "Extend this advertising image to a 9:16 vertical canvas. Continue the background naturally " +
	"above and below; keep every existing element, text and logo unchanged and in place."

func translationPrompt(lang string) string {
	name := lang
	if tag, err := language.Parse(lang); err == nil {
		if n := display.English.Tags().Name(tag); n != "" {
			name = n
		}
	}
	return fmt.Sprintf("Translate every piece of text in this advertising image into %s. Keep the layout, fonts, "+
		"colors, imagery and logos identical; only replace the words.", name)
}

func canonicalLanguages(in []string) ([]string, error) {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, raw := range in {
		tag, err := language.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: unknown language %q", domain.ErrInvalidInput, raw)
		}
		code := tag.String()
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one language is required", domain.ErrInvalidInput)
	}
	return out, nil
}

func validRatios(in []domain.Ratio) ([]domain.Ratio, error) {
	if len(in) == 0 {
		return []domain.Ratio{domain.RatioSquare}, nil
	}
	seen := make(map[domain.Ratio]bool, 2)
	var out []domain.Ratio
	for _, r := range in {
		if r != domain.RatioSquare && r != domain.RatioVertical {
			return nil, fmt.Errorf("%w: unsupported ratio %q", domain.ErrInvalidInput, r)
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out, nil
}
