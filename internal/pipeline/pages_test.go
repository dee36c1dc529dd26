package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adflow/internal/domain"
	"adflow/internal/patcher"
	"adflow/internal/pipeline"
)

const landingPage = `<h1>Hello world</h1><img src="https://cdn.example.com/hero.png"><p>Buy now</p>`

func translatedPage(t *testing.T, h *harness, lang string) *domain.Translation {
	t.Helper()
	ctx := context.Background()
	created, err := h.svc.CreateTranslation(ctx, pipeline.NewTranslation{PageID: "page-1", Language: lang, SourceContent: landingPage})
	require.NoError(t, err)
	require.Equal(t, domain.StatusDraft, created.Status)
	out, err := h.svc.TranslatePage(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusTranslated, out.Status)
	return out
}

func storedAnalysis(t *testing.T, tr *domain.Translation) domain.QualityAnalysis {
	t.Helper()
	var a domain.QualityAnalysis
	require.NoError(t, json.Unmarshal(tr.QualityAnalysis, &a))
	return a
}

func TestCreateTranslationValidates(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CreateTranslation(context.Background(), pipeline.NewTranslation{PageID: "p", Language: "de"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.svc.CreateTranslation(context.Background(), pipeline.NewTranslation{PageID: "p", Language: "??", SourceContent: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTranslatePageRecordsTranslatorFailure(t *testing.T) {
	h := newHarness(t, func(d *pipeline.Deps) {
		d.Translator = fakeTranslator{err: errors.New("analysis: model overloaded")}
	})
	ctx := context.Background()
	created, err := h.svc.CreateTranslation(ctx, pipeline.NewTranslation{PageID: "page-1", Language: "de", SourceContent: landingPage})
	require.NoError(t, err)

	out, err := h.svc.TranslatePage(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, out.Status)
	assert.Equal(t, "analysis: model overloaded", out.ErrorMessage)

	reset, err := h.svc.RetryTranslation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, reset.Status)
	assert.Empty(t, reset.ErrorMessage)

	_, err = h.svc.RetryTranslation(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "only errored translations can be retried")
}

func TestAnalyzeTranslationClampsWithoutFloor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := translatedPage(t, h, "de")

	h.analyzer.queue = []domain.QualityAnalysis{{Score: 120}, {Score: 40}}
	first, err := h.svc.AnalyzeTranslation(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, first.Score)
	assert.Equal(t, 120, first.RawScore)

	second, err := h.svc.AnalyzeTranslation(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, second.Score, "plain analysis never applies the floor")
	require.NotNil(t, second.PreviousScore)
	assert.Equal(t, 100, *second.PreviousScore)

	stored, err := h.svc.GetTranslation(ctx, tr.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.QualityScore)
	assert.Equal(t, 40, *stored.QualityScore)
}

func TestAnalyzeTranslationFlagsWrongLanguage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.CreateTranslation(ctx, pipeline.NewTranslation{
		PageID:        "page-2",
		Language:      "de",
		SourceContent: "<p>This limited offer includes free shipping on every order placed before the end of the month.</p>",
	})
	require.NoError(t, err)
	_, err = h.svc.TranslatePage(ctx, created.ID)
	require.NoError(t, err)

	h.analyzer.queue = []domain.QualityAnalysis{{Score: 95}}
	res, err := h.svc.AnalyzeTranslation(ctx, created.ID)
	require.NoError(t, err)
	require.NotEmpty(t, res.Issues)
	assert.Equal(t, "high", res.Issues[len(res.Issues)-1].Severity)
}

func TestAnalyzeRequiresContent(t *testing.T) {
	h := newHarness(t)
	created, err := h.svc.CreateTranslation(context.Background(), pipeline.NewTranslation{PageID: "p", Language: "de", SourceContent: landingPage})
	require.NoError(t, err)
	_, err = h.svc.AnalyzeTranslation(context.Background(), created.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestFixTranslationNeverLowersScore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := translatedPage(t, h, "de")

	h.analyzer.queue = []domain.QualityAnalysis{{Score: 85}}
	_, err := h.svc.AnalyzeTranslation(ctx, tr.ID)
	require.NoError(t, err)

	h.analyzer.queue = []domain.QualityAnalysis{
		{Score: 80, SuggestedCorrections: []domain.Correction{
			{Find: "Hello world", Replace: "Hallo Welt"},
			{Find: "not present", Replace: "egal"},
		}},
		{Score: 70},
	}
	res, err := h.svc.FixTranslation(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, 85, res.Analysis.Score, "score after a correction pass never drops")
	assert.Equal(t, 70, res.Analysis.RawScore)
	require.NotNil(t, res.Analysis.PreviousScore)
	assert.Equal(t, 85, *res.Analysis.PreviousScore)
	assert.Equal(t, 1, res.Report.AppliedCount())
	require.Len(t, res.Report.Failed, 1)
	assert.Equal(t, "not present", res.Report.Failed[0].Find)
	assert.Equal(t, domain.StatusTranslated, res.Translation.Status)
	assert.Contains(t, res.Translation.TranslatedContent, "Hallo Welt")
	assert.NotContains(t, res.Translation.TranslatedContent, "Hello world")

	stored := storedAnalysis(t, res.Translation)
	assert.Equal(t, 85, stored.Score)
	require.Len(t, stored.AppliedCorrections, 1)
	assert.Len(t, stored.FailedCorrections, 1)

	// The second analysis sees the corrections already applied.
	require.Len(t, h.analyzer.requests, 3)
	assert.Len(t, h.analyzer.requests[2].PriorCorrections, 1)

	h.analyzer.queue = []domain.QualityAnalysis{{Score: 90}}
	again, err := h.svc.FixTranslation(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, again.Analysis.Score)
	assert.Zero(t, again.Report.AppliedCount())
	assert.Len(t, storedAnalysis(t, again.Translation).AppliedCorrections, 1, "applied history is kept")
}

func TestFixTranslationWithoutPriorScoreFloorsAtFirstAnalysis(t *testing.T) {
	h := newHarness(t)
	tr := translatedPage(t, h, "fr")
	h.analyzer.queue = []domain.QualityAnalysis{
		{Score: 75, SuggestedCorrections: []domain.Correction{{Find: "Buy now", Replace: "Acheter"}}},
		{Score: 60},
	}
	res, err := h.svc.FixTranslation(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, 75, res.Analysis.Score)
}

func TestFixTranslationAnalysisFailureReleasesClaim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := translatedPage(t, h, "de")

	_, err := h.svc.FixTranslation(ctx, tr.ID)
	require.ErrorIs(t, err, domain.ErrUpstream)

	after, err := h.svc.GetTranslation(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTranslated, after.Status)
	assert.Contains(t, after.ErrorMessage, "quality analysis failed")
	assert.Equal(t, tr.TranslatedContent, after.TranslatedContent)
}

func TestSwapImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := translatedPage(t, h, "de")

	res, err := h.svc.SwapImage(ctx, tr.ID, pipeline.SwapRequest{
		OldURL: "https://cdn.example.com/hero.png",
		NewURL: "https://cdn.example.com/jobs/j/translations/t/hero-de.png",
		Hint:   patcher.NoHint,
	})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, patcher.StrategyExact, res.Strategy)
	assert.Contains(t, res.Translation.TranslatedContent, "hero-de.png")
	assert.Equal(t, domain.StatusTranslated, res.Translation.Status)

	miss, err := h.svc.SwapImage(ctx, tr.ID, pipeline.SwapRequest{
		OldURL: "https://elsewhere.example.com/other.jpg",
		NewURL: "https://cdn.example.com/x.png",
		Hint:   patcher.NoHint,
	})
	require.NoError(t, err, "an unmatched reference is a soft failure")
	assert.False(t, miss.Matched)
	assert.Equal(t, res.Translation.TranslatedContent, miss.Translation.TranslatedContent)
	assert.Equal(t, domain.StatusTranslated, miss.Translation.Status)

	_, err = h.svc.SwapImage(ctx, tr.ID, pipeline.SwapRequest{OldURL: "a"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSwapImageConflictsWithRunningWork(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := translatedPage(t, h, "de")
	_, err := h.coord.Transition(ctx, domain.EntityTranslation, tr.ID, []domain.Status{domain.StatusTranslated}, domain.StatusPublishing)
	require.NoError(t, err)

	_, err = h.svc.SwapImage(ctx, tr.ID, pipeline.SwapRequest{OldURL: "https://cdn.example.com/hero.png", NewURL: "https://x.example.com/y.png", Hint: patcher.NoHint})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestPublishTranslation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := translatedPage(t, h, "de")

	out, err := h.svc.PublishTranslation(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, out.Status)
	assert.Equal(t, "https://cdn.example.com/pages/page-1/de/index.html", out.PublishedURL)

	keys, err := h.objects.List(ctx, "pages/page-1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"pages/page-1/de/index.html"}, keys)

	republished, err := h.svc.PublishTranslation(ctx, tr.ID)
	require.NoError(t, err, "published pages can be republished")
	assert.Equal(t, domain.StatusPublished, republished.Status)
}

func TestPublishDraftIsRejected(t *testing.T) {
	h := newHarness(t)
	created, err := h.svc.CreateTranslation(context.Background(), pipeline.NewTranslation{PageID: "p", Language: "de", SourceContent: landingPage})
	require.NoError(t, err)
	_, err = h.svc.PublishTranslation(context.Background(), created.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
