package pipeline

import (
	"context"
	"errors"

	"adflow/internal/dispatch"
	"adflow/internal/domain"
)

// Work lists the items a sweep would pick up.
type Work struct {
	Expansions   []string
	Translations []string
}

// PendingWork returns pending expansions and translations plus working ones
// whose claim has gone stale.
func (s *Service) PendingWork(ctx context.Context, limit int) (Work, error) {
	staleBefore := s.now().Add(-s.settings.StaleAfter)
	expansions, err := s.Images.ListPendingExpansions(ctx, staleBefore, limit)
	if err != nil {
		return Work{}, err
	}
	translations, err := s.Images.ListPendingTranslations(ctx, staleBefore, limit)
	if err != nil {
		return Work{}, err
	}
	return Work{Expansions: expansions, Translations: translations}, nil
}

// SweepReport counts what one sweep did.
type SweepReport struct {
	Processed int
	Skipped   int
	Failed    int
}

func (r *SweepReport) add(outcomes []dispatch.Outcome[string, struct{}]) {
	for _, o := range outcomes {
		switch {
		case o.Err == nil:
			r.Processed++
		case errors.Is(o.Err, domain.ErrConflict), errors.Is(o.Err, domain.ErrInvalidTransition):
			r.Skipped++
		default:
			r.Failed++
		}
	}
}

// Sweep processes up to limit pending expansions, then up to limit pending
// translations, SweepConcurrency at a time. Items claimed by another
// invocation are skipped.
func (s *Service) Sweep(ctx context.Context, limit int) (SweepReport, error) {
	var report SweepReport
	work, err := s.PendingWork(ctx, limit)
	if err != nil {
		return report, err
	}
	report.add(dispatch.RunBounded(ctx, work.Expansions, s.settings.SweepConcurrency, func(ctx context.Context, id string) (struct{}, error) {
		_, err := s.ExpandSourceImage(ctx, id)
		return struct{}{}, err
	}))
	report.add(dispatch.RunBounded(ctx, work.Translations, s.settings.SweepConcurrency, func(ctx context.Context, id string) (struct{}, error) {
		_, err := s.ProcessImageTranslation(ctx, id)
		return struct{}{}, err
	}))
	s.logger.Info().
		Int("expansions", len(work.Expansions)).
		Int("translations", len(work.Translations)).
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("pipeline: sweep finished")
	return report, ctx.Err()
}
