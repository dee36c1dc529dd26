package pipeline_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adflow/internal/claim"
	"adflow/internal/domain"
	"adflow/internal/pipeline"
	"adflow/internal/providers/taskapi"
)

func createJob(t *testing.T, h *harness, langs []string, ratios []domain.Ratio, sources ...string) (*domain.ImageJob, []domain.SourceImage) {
	t.Helper()
	job, images, err := h.svc.CreateJob(context.Background(), pipeline.NewImageJob{
		Name:       "spring sale",
		Languages:  langs,
		Ratios:     ratios,
		SourceURLs: sources,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusDraft, job.Status)
	return job, images
}

// readyJob creates a square-only job and moves it to processing.
func readyJob(t *testing.T, h *harness, langs []string, sources ...string) (*domain.ImageJob, []domain.ImageTranslation) {
	t.Helper()
	ctx := context.Background()
	job, _ := createJob(t, h, langs, nil, sources...)
	started, err := h.svc.StartExpansion(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusReady, started.Status, "square-only jobs skip expansion")
	_, _, err = h.svc.StartTranslations(ctx, job.ID)
	require.NoError(t, err)
	detail, err := h.svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	return detail.Job, detail.Translations
}

func TestCreateJobValidates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.svc.CreateJob(ctx, pipeline.NewImageJob{Languages: []string{"de"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = h.svc.CreateJob(ctx, pipeline.NewImageJob{Languages: []string{"not a tag!"}, SourceURLs: []string{"a"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = h.svc.CreateJob(ctx, pipeline.NewImageJob{Languages: []string{"de"}, Ratios: []domain.Ratio{"4:3"}, SourceURLs: []string{"a"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	job, images := createJob(t, h, []string{"de", "DE", "fr"}, nil, "https://src.example.com/a.png")
	assert.Equal(t, []string{"de", "fr"}, job.Languages)
	assert.Equal(t, []domain.Ratio{domain.RatioSquare}, job.Ratios)
	require.Len(t, images, 1)
	assert.Equal(t, domain.StatusPending, images[0].ExpansionStatus)
}

func TestExpansionThenTranslationPlanning(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, _ := createJob(t, h, []string{"de", "fr"}, []domain.Ratio{domain.RatioSquare, domain.RatioVertical},
		"https://src.example.com/1.png", "https://src.example.com/2.png", "https://src.example.com/3.png")
	h.tasks.set("https://src.example.com/3.png", taskapi.Failed{Reason: "content policy violation"})

	started, err := h.svc.StartExpansion(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusExpanding, started.Status)

	images, err := h.store.ListSourceImages(ctx, job.ID)
	require.NoError(t, err)
	for i, img := range images {
		out, err := h.svc.ExpandSourceImage(ctx, img.ID)
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, domain.StatusCompleted, out.ExpansionStatus)
			assert.True(t, strings.HasPrefix(out.ExpandedURL, "https://cdn.example.com/jobs/"+job.ID+"/expanded/"), out.ExpandedURL)
		} else {
			assert.Equal(t, domain.StatusFailed, out.ExpansionStatus)
			assert.Equal(t, "content policy violation", out.ExpansionError)
		}
		current, err := h.store.GetJob(ctx, job.ID)
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, domain.StatusExpanding, current.Status, "job must wait for every image")
		} else {
			assert.Equal(t, domain.StatusReady, current.Status)
		}
	}

	// 3 images x 2 languages square + 2 expanded images x 2 languages vertical.
	processing, inserted, err := h.svc.StartTranslations(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, inserted)
	assert.Equal(t, domain.StatusProcessing, processing.Status)

	items, err := h.store.ListImageTranslations(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, items, 10)
	vertical := 0
	for _, it := range items {
		assert.Equal(t, domain.StatusPending, it.Status)
		if it.Ratio == domain.RatioVertical {
			vertical++
			assert.NotEqual(t, images[2].ID, it.SourceImageID, "failed expansion gets no vertical rows")
		}
	}
	assert.Equal(t, 4, vertical)

	again, err := h.store.InsertImageTranslations(ctx, pipeline.PlanTranslations(processing, images))
	require.NoError(t, err)
	assert.Zero(t, again, "re-planning never duplicates rows")

	_, _, err = h.svc.StartTranslations(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestExpandRequiresExpandingJob(t *testing.T) {
	h := newHarness(t)
	_, images := createJob(t, h, []string{"de"}, []domain.Ratio{domain.RatioVertical}, "https://src.example.com/1.png")
	_, err := h.svc.ExpandSourceImage(context.Background(), images[0].ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestProcessImageTranslationCompletesJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, items := readyJob(t, h, []string{"de-DE"}, "https://src.example.com/hero.png")
	require.Len(t, items, 1)
	require.Equal(t, domain.StatusProcessing, job.Status)

	out, err := h.svc.ProcessImageTranslation(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, out.Status)
	assert.True(t, strings.HasPrefix(out.TranslatedURL, "https://cdn.example.com/jobs/"+job.ID+"/translations/"+items[0].ID+"/"), out.TranslatedURL)
	assert.NotEmpty(t, out.ActiveVersionID)

	require.Len(t, h.tasks.specs, 1)
	assert.Contains(t, h.tasks.specs[0].Prompt, "German (Germany)")
	assert.Equal(t, "2K", h.tasks.specs[0].Resolution)

	versions, err := h.svc.ListVersions(ctx, items[0].ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.True(t, versions[0].Active)
	assert.Equal(t, out.TranslatedURL, versions[0].URL)

	detail, err := h.svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, detail.Job.Status)
}

func TestProcessImageTranslationRecordsFailureAndTimeout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.tasks.set("https://src.example.com/bad.png", taskapi.Failed{Reason: "image could not be read"})
	h.tasks.set("https://src.example.com/slow.png", taskapi.TimedOut{Elapsed: 279 * time.Second, Polls: 93})
	job, items := readyJob(t, h, []string{"fr"}, "https://src.example.com/bad.png", "https://src.example.com/slow.png")
	require.Len(t, items, 2)

	messages := map[string]string{}
	for _, it := range items {
		out, err := h.svc.ProcessImageTranslation(ctx, it.ID)
		require.NoError(t, err, "provider failures are recorded, not returned")
		assert.Equal(t, domain.StatusFailed, out.Status)
		messages[out.SourceImageID] = out.ErrorMessage
	}
	var timeout, failure string
	for _, msg := range messages {
		if strings.Contains(msg, "timed out") {
			timeout = msg
		} else {
			failure = msg
		}
	}
	assert.NotEmpty(t, timeout, "timeouts must be distinguishable")
	assert.Equal(t, "image could not be read", failure)

	current, err := h.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, current.Status, "a job with no successful item fails")
}

func TestPartialSuccessCompletesJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.tasks.set("https://src.example.com/bad.png", taskapi.Failed{Reason: "nope"})
	job, items := readyJob(t, h, []string{"es"}, "https://src.example.com/ok.png", "https://src.example.com/bad.png")
	for _, it := range items {
		_, err := h.svc.ProcessImageTranslation(ctx, it.ID)
		require.NoError(t, err)
	}
	current, err := h.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, current.Status)
}

func TestProcessImageTranslationConflictAndStaleRecovery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, items := readyJob(t, h, []string{"it"}, "https://src.example.com/a.png")
	id := items[0].ID

	_, err := h.coord.Acquire(ctx, claim.Request{
		Entity: domain.EntityImageTranslation,
		ID:     id,
		From:   []domain.Status{domain.StatusPending},
		To:     domain.StatusProcessing,
	})
	require.NoError(t, err)

	_, err = h.svc.ProcessImageTranslation(ctx, id)
	assert.ErrorIs(t, err, domain.ErrConflict, "a fresh claim blocks other invocations")
	assert.Empty(t, h.tasks.specs, "no provider call without the claim")

	h.clock.Advance(11 * time.Minute)
	out, err := h.svc.ProcessImageTranslation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, out.Status)
}

func TestRetryImageTranslations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.tasks.set("https://src.example.com/a.png", taskapi.Failed{Reason: "boom"})
	job, items := readyJob(t, h, []string{"de", "fr"}, "https://src.example.com/a.png")
	require.Len(t, items, 2)

	_, err := h.svc.ProcessImageTranslation(ctx, items[0].ID)
	require.NoError(t, err)
	_, err = h.coord.Acquire(ctx, claim.Request{
		Entity: domain.EntityImageTranslation,
		ID:     items[1].ID,
		From:   []domain.Status{domain.StatusPending},
		To:     domain.StatusProcessing,
	})
	require.NoError(t, err)

	res, err := h.svc.RetryImageTranslations(ctx, job.ID, true)
	require.NoError(t, err)
	assert.Equal(t, pipeline.RetryResult{Reset: 1}, res, "fresh processing items are left alone")

	h.clock.Advance(time.Hour)
	res, err = h.svc.RetryImageTranslations(ctx, job.ID, false)
	require.NoError(t, err)
	assert.Zero(t, res.Recovered, "stale items need includeStale")

	res, err = h.svc.RetryImageTranslations(ctx, job.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Recovered)

	after, err := h.store.ListImageTranslations(ctx, job.ID)
	require.NoError(t, err)
	for _, it := range after {
		assert.Equal(t, domain.StatusPending, it.Status)
	}
	current, err := h.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, current.Status)
}

func TestRetryReopensFailedJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.tasks.set("https://src.example.com/a.png", taskapi.Failed{Reason: "boom"})
	job, items := readyJob(t, h, []string{"de"}, "https://src.example.com/a.png")
	_, err := h.svc.ProcessImageTranslation(ctx, items[0].ID)
	require.NoError(t, err)
	failed, err := h.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, failed.Status)

	res, err := h.svc.RetryImageTranslations(ctx, job.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reset)

	h.tasks.set("https://src.example.com/a.png", taskapi.Success{URLs: []string{"https://gen.example.com/ok.png"}})
	out, err := h.svc.ProcessImageTranslation(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, out.Status)
	done, err := h.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
}

// orderedStore records each successful status write made through it.
type orderedStore struct {
	claim.Store
	mu     sync.Mutex
	writes []string
}

func (o *orderedStore) CompareAndSwap(ctx context.Context, entity domain.Entity, id string, from []domain.Status, to domain.Status, errMsg string) (bool, error) {
	ok, err := o.Store.CompareAndSwap(ctx, entity, id, from, to, errMsg)
	if ok {
		o.mu.Lock()
		o.writes = append(o.writes, string(entity)+":"+string(to))
		o.mu.Unlock()
	}
	return ok, err
}

func TestRetryReopensJobBeforeResettingChildren(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.tasks.set("https://src.example.com/a.png", taskapi.Failed{Reason: "boom"})
	job, items := readyJob(t, h, []string{"de", "fr"}, "https://src.example.com/a.png")
	for _, it := range items {
		_, err := h.svc.ProcessImageTranslation(ctx, it.ID)
		require.NoError(t, err)
	}

	recorder := &orderedStore{Store: h.store}
	svc, err := pipeline.NewService(pipeline.Deps{
		Claims:    claim.NewCoordinator(recorder, claim.Options{Now: h.clock.Now}),
		Images:    h.store,
		Pages:     h.store,
		ABTests:   h.store,
		Campaigns: h.store,
		Now:       h.clock.Now,
	}, pipeline.Settings{})
	require.NoError(t, err)

	res, err := svc.RetryImageTranslations(ctx, job.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Reset)
	require.NotEmpty(t, recorder.writes)
	assert.Equal(t, string(domain.EntityImageJob)+":"+string(domain.StatusProcessing), recorder.writes[0])
	assert.Len(t, recorder.writes, 3, "the second reopen finds the job already processing")
}

func TestActivateVersion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, items := readyJob(t, h, []string{"de"}, "https://src.example.com/a.png")
	id := items[0].ID
	_, err := h.svc.ProcessImageTranslation(ctx, id)
	require.NoError(t, err)

	versions, err := h.svc.ListVersions(ctx, id)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	active, err := h.svc.ActivateVersion(ctx, id, versions[0].ID)
	require.NoError(t, err)
	assert.True(t, active.Active)

	_, err = h.svc.ActivateVersion(ctx, id, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteJobRemovesFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, items := readyJob(t, h, []string{"de"}, "https://src.example.com/a.png")
	_, err := h.svc.ProcessImageTranslation(ctx, items[0].ID)
	require.NoError(t, err)

	keys, err := h.objects.List(ctx, "jobs/"+job.ID+"/")
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, h.svc.DeleteJob(ctx, job.ID))
	keys, err = h.objects.List(ctx, "jobs/"+job.ID+"/")
	require.NoError(t, err)
	assert.Empty(t, keys)
	_, err = h.svc.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.store.GetImageTranslation(ctx, items[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSweepProcessesPendingExpansions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, _ := createJob(t, h, []string{"de"}, []domain.Ratio{domain.RatioVertical},
		"https://src.example.com/1.png", "https://src.example.com/2.png")
	_, err := h.svc.StartExpansion(ctx, job.ID)
	require.NoError(t, err)

	work, err := h.svc.PendingWork(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, work.Expansions, 2)

	report, err := h.svc.Sweep(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, pipeline.SweepReport{Processed: 2}, report)

	current, err := h.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, current.Status)
}
