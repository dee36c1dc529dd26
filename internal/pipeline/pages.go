package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"adflow/internal/claim"
	"adflow/internal/domain"
	"adflow/internal/patcher"
	"adflow/internal/providers/analysis"
	"adflow/internal/quality"
)

// NewTranslation is the intake payload of a page translation.
type NewTranslation struct {
	PageID        string
	Language      string
	SourceContent string
}

// CreateTranslation stores a draft translation of a page.
func (s *Service) CreateTranslation(ctx context.Context, in NewTranslation) (*domain.Translation, error) {
	langs, err := canonicalLanguages([]string{in.Language})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.PageID) == "" || strings.TrimSpace(in.SourceContent) == "" {
		return nil, fmt.Errorf("%w: page id and source content are required", domain.ErrInvalidInput)
	}
	t := &domain.Translation{
		PageID:        strings.TrimSpace(in.PageID),
		Language:      langs[0],
		Status:        domain.StatusDraft,
		SourceContent: in.SourceContent,
	}
	if err := s.Pages.CreateTranslation(ctx, t); err != nil {
		return nil, fmt.Errorf("create translation: %w", err)
	}
	return t, nil
}

// GetTranslation loads one page translation.
func (s *Service) GetTranslation(ctx context.Context, id string) (*domain.Translation, error) {
	return s.Pages.GetTranslation(ctx, id)
}

func (s *Service) acquireTranslation(ctx context.Context, id string, from []domain.Status, to domain.Status) (*claim.Ticket, error) {
	return s.Claims.Acquire(ctx, claim.Request{
		Entity:     domain.EntityTranslation,
		ID:         id,
		From:       from,
		To:         to,
		StaleAfter: s.settings.StaleAfter,
	})
}

// TranslatePage renders the page source into the translation's language.
func (s *Service) TranslatePage(ctx context.Context, id string) (*domain.Translation, error) {
	t, err := s.Pages.GetTranslation(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Translator == nil {
		return nil, fmt.Errorf("%w: translator is not configured", domain.ErrUpstream)
	}
	ticket, err := s.acquireTranslation(ctx, id,
		[]domain.Status{domain.StatusDraft, domain.StatusTranslated, domain.StatusError}, domain.StatusTranslating)
	if err != nil {
		return nil, err
	}
	out, err := s.Claims.Run(ctx, ticket, func(ctx context.Context) (claim.Outcome, error) {
		content, err := s.Translator.Translate(ctx, t.SourceContent, t.Language)
		if err != nil {
			return claim.Outcome{Status: domain.StatusError, Message: err.Error()}, nil
		}
		if err := s.Pages.SaveContent(ctx, id, content); err != nil {
			return claim.Outcome{}, err
		}
		return claim.Succeeded(domain.StatusTranslated), nil
	})
	s.logger.Info().Str("translation_id", id).Str("status", string(out.Status)).Str("message", out.Message).Msg("pipeline: page translated")
	if err != nil {
		return nil, err
	}
	return s.Pages.GetTranslation(ctx, id)
}

// AnalyzeTranslation scores the current translated content and stores the
// result. A plain analysis never applies the correction floor.
func (s *Service) AnalyzeTranslation(ctx context.Context, id string) (*domain.QualityAnalysis, error) {
	t, err := s.Pages.GetTranslation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireContent(t); err != nil {
		return nil, err
	}
	if s.Analyzer == nil {
		return nil, fmt.Errorf("%w: analyzer is not configured", domain.ErrUpstream)
	}
	prior := decodeAnalysis(t.QualityAnalysis)
	res, err := s.Analyzer.Analyze(ctx, analysis.Request{
		Original:         t.SourceContent,
		Candidate:        t.TranslatedContent,
		Language:         t.Language,
		PriorCorrections: prior.AppliedCorrections,
	})
	if err != nil {
		return nil, err
	}
	quality.Reconcile(&res, t.QualityScore, false)
	res.AppliedCorrections = prior.AppliedCorrections
	addLanguageIssue(&res, t)
	if err := s.saveQuality(ctx, id, res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FixResult is the outcome of one correction pass.
type FixResult struct {
	Translation *domain.Translation
	Analysis    domain.QualityAnalysis
	Report      patcher.Report
}

// FixTranslation analyzes the translation, applies the suggested corrections,
// re-analyzes and records a score that never drops below the score before the
// pass.
func (s *Service) FixTranslation(ctx context.Context, id string) (*FixResult, error) {
	t, err := s.Pages.GetTranslation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireContent(t); err != nil {
		return nil, err
	}
	if s.Analyzer == nil {
		return nil, fmt.Errorf("%w: analyzer is not configured", domain.ErrUpstream)
	}
	ticket, err := s.acquireTranslation(ctx, id, []domain.Status{domain.StatusTranslated}, domain.StatusTranslating)
	if err != nil {
		return nil, err
	}

	var result FixResult
	_, err = s.Claims.Run(ctx, ticket, func(ctx context.Context) (claim.Outcome, error) {
		prior := decodeAnalysis(t.QualityAnalysis)
		first, err := s.Analyzer.Analyze(ctx, analysis.Request{
			Original:         t.SourceContent,
			Candidate:        t.TranslatedContent,
			Language:         t.Language,
			PriorCorrections: prior.AppliedCorrections,
		})
		if err != nil {
			return claim.Outcome{Status: domain.StatusTranslated, Message: "quality analysis failed: " + err.Error()}, err
		}
		content, report := patcher.ApplyCorrections(t.TranslatedContent, first.SuggestedCorrections)
		result.Report = report

		final := first
		if len(report.Applied) > 0 {
			if err := s.Pages.SaveContent(ctx, id, content); err != nil {
				return claim.Outcome{}, err
			}
			applied := append(append([]domain.Correction(nil), prior.AppliedCorrections...), report.Applied...)
			second, err := s.Analyzer.Analyze(ctx, analysis.Request{
				Original:         t.SourceContent,
				Candidate:        content,
				Language:         t.Language,
				PriorCorrections: applied,
			})
			if err != nil {
				return claim.Outcome{Status: domain.StatusTranslated, Message: "quality re-analysis failed: " + err.Error()}, err
			}
			before := t.QualityScore
			if before == nil {
				score := quality.Clamp(first.Score)
				before = &score
			}
			final = second
			quality.Reconcile(&final, before, true)
			final.AppliedCorrections = applied
		} else {
			quality.Reconcile(&final, t.QualityScore, false)
			final.AppliedCorrections = prior.AppliedCorrections
		}
		final.SuggestedCorrections = first.SuggestedCorrections
		final.FailedCorrections = report.Failed
		addLanguageIssue(&final, &domain.Translation{Language: t.Language, TranslatedContent: content})
		if err := s.saveQuality(ctx, id, final); err != nil {
			return claim.Outcome{}, err
		}
		result.Analysis = final
		return claim.Succeeded(domain.StatusTranslated), nil
	})
	s.logger.Info().
		Str("translation_id", id).
		Int("applied", len(result.Report.Applied)).
		Int("failed", len(result.Report.Failed)).
		Int("score", result.Analysis.Score).
		Msg("pipeline: correction pass finished")
	if err != nil {
		return nil, err
	}
	result.Translation, err = s.Pages.GetTranslation(ctx, id)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SwapRequest replaces one image reference in a translated page.
type SwapRequest struct {
	OldURL string
	NewURL string
	// Hint is the zero-based position of the image, or patcher.NoHint.
	Hint int
}

// SwapResult reports how the reference was found.
type SwapResult struct {
	Translation *domain.Translation
	Strategy    patcher.Strategy
	Matched     bool
}

// SwapImage rewrites an image reference in the translated content. A
// reference that cannot be found leaves the content untouched and is not an
// error.
func (s *Service) SwapImage(ctx context.Context, id string, req SwapRequest) (*SwapResult, error) {
	if strings.TrimSpace(req.OldURL) == "" || strings.TrimSpace(req.NewURL) == "" {
		return nil, fmt.Errorf("%w: old and new url are required", domain.ErrInvalidInput)
	}
	t, err := s.Pages.GetTranslation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireContent(t); err != nil {
		return nil, err
	}
	ticket, err := s.acquireTranslation(ctx, id, []domain.Status{domain.StatusTranslated}, domain.StatusTranslating)
	if err != nil {
		return nil, err
	}
	var swap patcher.Swap
	_, err = s.Claims.Run(ctx, ticket, func(ctx context.Context) (claim.Outcome, error) {
		swap = patcher.ReplaceReference(t.TranslatedContent, req.OldURL, req.NewURL, req.Hint)
		if !swap.Matched() {
			s.logger.Warn().Str("translation_id", id).Str("old_url", req.OldURL).Msg("pipeline: image reference not found")
			return claim.Succeeded(domain.StatusTranslated), nil
		}
		if err := s.Pages.SaveContent(ctx, id, swap.Markup); err != nil {
			return claim.Outcome{Status: domain.StatusTranslated, Message: "save content: " + err.Error()}, err
		}
		s.logger.Info().Str("translation_id", id).Str("strategy", string(swap.Strategy)).Int("rewritten", swap.Rewritten).Msg("pipeline: image reference swapped")
		return claim.Succeeded(domain.StatusTranslated), nil
	})
	if err != nil {
		return nil, err
	}
	updated, err := s.Pages.GetTranslation(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SwapResult{Translation: updated, Strategy: swap.Strategy, Matched: swap.Matched()}, nil
}

// PublishTranslation hosts the translated page.
func (s *Service) PublishTranslation(ctx context.Context, id string) (*domain.Translation, error) {
	t, err := s.Pages.GetTranslation(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Publisher == nil {
		return nil, fmt.Errorf("%w: publisher is not configured", domain.ErrUpstream)
	}
	ticket, err := s.acquireTranslation(ctx, id,
		[]domain.Status{domain.StatusTranslated, domain.StatusPublished, domain.StatusError}, domain.StatusPublishing)
	if err != nil {
		return nil, err
	}
	out, err := s.Claims.Run(ctx, ticket, func(ctx context.Context) (claim.Outcome, error) {
		if strings.TrimSpace(t.TranslatedContent) == "" {
			return claim.Outcome{Status: domain.StatusError, Message: "nothing to publish: translation has no content"}, nil
		}
		url, err := s.Publisher.Publish(ctx, t)
		if err != nil {
			return claim.Outcome{Status: domain.StatusError, Message: err.Error()}, nil
		}
		if err := s.Pages.SavePublishedURL(ctx, id, url); err != nil {
			return claim.Outcome{}, err
		}
		return claim.Succeeded(domain.StatusPublished), nil
	})
	s.logger.Info().Str("translation_id", id).Str("status", string(out.Status)).Str("message", out.Message).Msg("pipeline: publish finished")
	if err != nil {
		return nil, err
	}
	return s.Pages.GetTranslation(ctx, id)
}

// RetryTranslation resets a failed translation to draft.
func (s *Service) RetryTranslation(ctx context.Context, id string) (*domain.Translation, error) {
	if _, err := s.Pages.GetTranslation(ctx, id); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, domain.EntityTranslation, id, []domain.Status{domain.StatusError}, domain.StatusDraft); err != nil {
		return nil, err
	}
	return s.Pages.GetTranslation(ctx, id)
}

func requireContent(t *domain.Translation) error {
	if strings.TrimSpace(t.TranslatedContent) == "" {
		return fmt.Errorf("%w: translation %s has no translated content", domain.ErrInvalidTransition, t.ID)
	}
	return nil
}

func decodeAnalysis(raw []byte) domain.QualityAnalysis {
	var a domain.QualityAnalysis
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &a)
	}
	return a
}

func (s *Service) saveQuality(ctx context.Context, id string, a domain.QualityAnalysis) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	if err := s.Pages.SaveQuality(ctx, id, a.Score, raw); err != nil {
		return fmt.Errorf("save quality: %w", err)
	}
	return nil
}

func addLanguageIssue(a *domain.QualityAnalysis, t *domain.Translation) {
	if issue := quality.LanguageIssue(visibleText(t.TranslatedContent), t.Language); issue != nil {
		a.Issues = append(a.Issues, *issue)
	}
}

// visibleText drops markup so language detection sees prose only.
func visibleText(markup string) string {
	var b strings.Builder
	depth := 0
	for _, r := range markup {
		switch {
		case r == '<':
			depth++
			b.WriteByte(' ')
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
