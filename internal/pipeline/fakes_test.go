package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"adflow/internal/claim"
	"adflow/internal/domain"
	"adflow/internal/pipeline"
	"adflow/internal/providers/analysis"
	"adflow/internal/providers/meta"
	"adflow/internal/providers/taskapi"
	"adflow/internal/storage"
	"adflow/internal/store/memstore"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeTasks succeeds unless a result is registered for the first source URL.
type fakeTasks struct {
	mu      sync.Mutex
	seq     int
	results map[string]taskapi.Result
	specs   []taskapi.TaskSpec
	byTask  map[string]string
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{results: map[string]taskapi.Result{}, byTask: map[string]string{}}
}

func (f *fakeTasks) Submit(_ context.Context, spec taskapi.TaskSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("task-%d", f.seq)
	f.specs = append(f.specs, spec)
	if len(spec.SourceURLs) > 0 {
		f.byTask[id] = spec.SourceURLs[0]
	}
	return id, nil
}

func (f *fakeTasks) AwaitResult(_ context.Context, taskID string, _, _ time.Duration) taskapi.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if res, ok := f.results[f.byTask[taskID]]; ok {
		return res
	}
	return taskapi.Success{URLs: []string{"https://gen.example.com/" + taskID + ".png"}}
}

func (f *fakeTasks) set(sourceURL string, res taskapi.Result) {
	f.mu.Lock()
	f.results[sourceURL] = res
	f.mu.Unlock()
}

type fakeDownloads struct {
	fail map[string]bool
}

func (f fakeDownloads) Download(_ context.Context, url string) ([]byte, string, error) {
	if f.fail[url] {
		return nil, "", errors.New("download: status 404")
	}
	return []byte("bytes of " + url), "image/png", nil
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	queue    []domain.QualityAnalysis
	requests []analysis.Request
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req analysis.Request) (domain.QualityAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.queue) == 0 {
		return domain.QualityAnalysis{}, fmt.Errorf("analysis: %w: no scripted response", domain.ErrUpstream)
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next, nil
}

type fakeTranslator struct {
	err error
}

func (f fakeTranslator) Translate(_ context.Context, content, lang string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "[" + lang + "] " + content, nil
}

type fakeAds struct {
	mu        sync.Mutex
	failImage map[string]bool
	campaigns int
	adSets    int
	ads       int
	inFlight  atomic.Int32
	peak      atomic.Int32
}

func (f *fakeAds) CreateCampaign(context.Context, meta.CampaignSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaigns++
	return fmt.Sprintf("cmp-%d", f.campaigns), nil
}

func (f *fakeAds) CreateAdSet(context.Context, meta.AdSetSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adSets++
	return fmt.Sprintf("set-%d", f.adSets), nil
}

func (f *fakeAds) DuplicateAdSet(_ context.Context, templateID, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adSets++
	return templateID + "-copy", nil
}

func (f *fakeAds) UploadImage(_ context.Context, filename string, data []byte) (string, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.peak.Load()
		if cur <= old || f.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	f.mu.Lock()
	fail := f.failImage[filename]
	f.mu.Unlock()
	if fail {
		return "", &meta.APIError{StatusCode: 400, Message: "Invalid image", Code: 100}
	}
	return "hash-" + filename, nil
}

func (f *fakeAds) CreateCreative(_ context.Context, spec meta.CreativeSpec) (string, error) {
	return "cr-" + spec.ImageHash, nil
}

func (f *fakeAds) CreateAd(_ context.Context, spec meta.AdSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ads++
	return fmt.Sprintf("ad-%d", f.ads), nil
}

type harness struct {
	svc      *pipeline.Service
	store    *memstore.Store
	clock    *testClock
	coord    *claim.Coordinator
	tasks    *fakeTasks
	objects  *storage.FileStore
	analyzer *fakeAnalyzer
	ads      *fakeAds
}

func newHarness(t *testing.T, opts ...func(*pipeline.Deps)) *harness {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	store := memstore.New()
	store.SetNow(clock.Now)
	coord := claim.NewCoordinator(store, claim.Options{Now: clock.Now})
	objects, err := storage.NewFileStore(t.TempDir(), "https://cdn.example.com")
	require.NoError(t, err)
	h := &harness{
		store:    store,
		clock:    clock,
		coord:    coord,
		tasks:    newFakeTasks(),
		objects:  objects,
		analyzer: &fakeAnalyzer{},
		ads:      &fakeAds{failImage: map[string]bool{}},
	}
	deps := pipeline.Deps{
		Claims:     coord,
		Images:     store,
		Pages:      store,
		ABTests:    store,
		Campaigns:  store,
		Tasks:      h.tasks,
		Objects:    objects,
		Downloads:  fakeDownloads{},
		Analyzer:   h.analyzer,
		Translator: fakeTranslator{},
		Publisher:  pipeline.StorePublisher{Objects: objects},
		Ads:        h.ads,
		Now:        clock.Now,
	}
	for _, o := range opts {
		o(&deps)
	}
	h.svc, err = pipeline.NewService(deps, pipeline.Settings{PushConcurrency: 3})
	require.NoError(t, err)
	return h
}
