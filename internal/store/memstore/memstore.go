// Package memstore is an in-memory implementation of the claim store and the
// domain repositories. It backs unit tests and the memory store driver used
// for local runs; a single mutex stands in for row-level atomicity.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"adflow/internal/claim"
	"adflow/internal/domain"
)

// Store holds every entity in maps keyed by id.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	jobs         map[string]*domain.ImageJob
	images       map[string]*domain.SourceImage
	translations map[string]*domain.ImageTranslation
	versions     map[string]*domain.Version
	pages        map[string]*domain.Translation
	abtests      map[string]*domain.ABTest
	campaigns    map[string]*domain.Campaign
	ads          map[string]*domain.Ad

	// CASErr is returned by CompareAndSwap when non-nil.
	CASErr error
	// Swaps counts successful CompareAndSwap calls per entity.
	Swaps map[domain.Entity]int
}

// New creates an empty store using the wall clock.
func New() *Store {
	return &Store{
		now:          time.Now,
		jobs:         make(map[string]*domain.ImageJob),
		images:       make(map[string]*domain.SourceImage),
		translations: make(map[string]*domain.ImageTranslation),
		versions:     make(map[string]*domain.Version),
		pages:        make(map[string]*domain.Translation),
		abtests:      make(map[string]*domain.ABTest),
		campaigns:    make(map[string]*domain.Campaign),
		ads:          make(map[string]*domain.Ad),
		Swaps:        make(map[domain.Entity]int),
	}
}

// SetNow replaces the clock used for updated_at stamps.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// row exposes the status columns of one entity.
type row struct {
	status    *domain.Status
	errMsg    *string
	updatedAt *time.Time
}

func (s *Store) rowLocked(entity domain.Entity, id string) (row, bool) {
	switch entity {
	case domain.EntityImageJob:
		if v, ok := s.jobs[id]; ok {
			return row{&v.Status, &v.ErrorMessage, &v.UpdatedAt}, true
		}
	case domain.EntitySourceImage:
		if v, ok := s.images[id]; ok {
			return row{&v.ExpansionStatus, &v.ExpansionError, &v.UpdatedAt}, true
		}
	case domain.EntityImageTranslation:
		if v, ok := s.translations[id]; ok {
			return row{&v.Status, &v.ErrorMessage, &v.UpdatedAt}, true
		}
	case domain.EntityTranslation:
		if v, ok := s.pages[id]; ok {
			return row{&v.Status, &v.ErrorMessage, &v.UpdatedAt}, true
		}
	case domain.EntityABTest:
		if v, ok := s.abtests[id]; ok {
			return row{&v.Status, &v.ErrorMessage, &v.UpdatedAt}, true
		}
	case domain.EntityCampaign:
		if v, ok := s.campaigns[id]; ok {
			return row{&v.Status, &v.ErrorMessage, &v.UpdatedAt}, true
		}
	case domain.EntityAd:
		if v, ok := s.ads[id]; ok {
			return row{&v.Status, &v.ErrorMessage, &v.UpdatedAt}, true
		}
	}
	return row{}, false
}

// CompareAndSwap implements claim.Store.
func (s *Store) CompareAndSwap(_ context.Context, entity domain.Entity, id string, from []domain.Status, to domain.Status, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CASErr != nil {
		return false, s.CASErr
	}
	r, ok := s.rowLocked(entity, id)
	if !ok {
		return false, nil
	}
	if !containsStatus(from, *r.status) {
		return false, nil
	}
	*r.status = to
	*r.errMsg = errMsg
	*r.updatedAt = s.now()
	s.Swaps[entity]++
	return true, nil
}

// RecoverStale implements claim.Store.
func (s *Store) RecoverStale(_ context.Context, entity domain.Entity, id string, working domain.Status, cutoff time.Time, to domain.Status, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rowLocked(entity, id)
	if !ok || *r.status != working || !r.updatedAt.Before(cutoff) {
		return false, nil
	}
	*r.status = to
	*r.errMsg = errMsg
	*r.updatedAt = s.now()
	return true, nil
}

// Snapshot implements claim.Store.
func (s *Store) Snapshot(_ context.Context, entity domain.Entity, id string) (domain.Status, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rowLocked(entity, id)
	if !ok {
		return "", time.Time{}, fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return *r.status, *r.updatedAt, nil
}

// Touch overrides updated_at, letting tests age a claim.
func (s *Store) Touch(entity domain.Entity, id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rowLocked(entity, id); ok {
		*r.updatedAt = at
	}
}

// ---- image jobs ----

func (s *Store) CreateJob(_ context.Context, job *domain.ImageJob, images []domain.SourceImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.CreatedAt, job.UpdatedAt = now, now
	cp := *job
	cp.Languages = append([]string(nil), job.Languages...)
	cp.Ratios = append([]domain.Ratio(nil), job.Ratios...)
	s.jobs[job.ID] = &cp
	for i := range images {
		img := images[i]
		if img.ID == "" {
			img.ID = uuid.NewString()
		}
		img.JobID = job.ID
		img.CreatedAt, img.UpdatedAt = now, now
		s.images[img.ID] = &img
		images[i] = img
	}
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*domain.ImageJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	cp.Languages = append([]string(nil), v.Languages...)
	cp.Ratios = append([]domain.Ratio(nil), v.Ratios...)
	return &cp, nil
}

func (s *Store) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return domain.ErrNotFound
	}
	for tid, t := range s.translations {
		if t.JobID != id {
			continue
		}
		for vid, v := range s.versions {
			if v.ImageTranslationID == tid {
				delete(s.versions, vid)
			}
		}
		delete(s.translations, tid)
	}
	for iid, img := range s.images {
		if img.JobID == id {
			delete(s.images, iid)
		}
	}
	delete(s.jobs, id)
	return nil
}

func (s *Store) ListSourceImages(_ context.Context, jobID string) ([]domain.SourceImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SourceImage
	for _, img := range s.images {
		if img.JobID == jobID {
			out = append(out, *img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) GetSourceImage(_ context.Context, id string) (*domain.SourceImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.images[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *Store) SetExpandedURL(_ context.Context, id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.images[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.ExpandedURL = url
	return nil
}

func (s *Store) InsertImageTranslations(_ context.Context, rows []domain.ImageTranslation) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := make(map[string]bool, len(s.translations))
	for _, t := range s.translations {
		existing[translationKey(t.SourceImageID, t.Language, t.Ratio)] = true
	}
	now := s.now()
	inserted := 0
	for _, r := range rows {
		key := translationKey(r.SourceImageID, r.Language, r.Ratio)
		if existing[key] {
			continue
		}
		existing[key] = true
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.CreatedAt, r.UpdatedAt = now, now
		cp := r
		s.translations[r.ID] = &cp
		inserted++
	}
	return inserted, nil
}

func (s *Store) GetImageTranslation(_ context.Context, id string) (*domain.ImageTranslation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.translations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *Store) ListImageTranslations(_ context.Context, jobID string) ([]domain.ImageTranslation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ImageTranslation
	for _, t := range s.translations {
		if t.JobID == jobID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return translationKey(out[i].SourceImageID, out[i].Language, out[i].Ratio) < translationKey(out[j].SourceImageID, out[j].Language, out[j].Ratio)
	})
	return out, nil
}

func (s *Store) SetTranslatedURL(_ context.Context, id, url, versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.translations[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.TranslatedURL = url
	v.ActiveVersionID = versionID
	return nil
}

func (s *Store) AppendVersion(_ context.Context, v *domain.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.translations[v.ImageTranslationID]; !ok {
		return domain.ErrNotFound
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.CreatedAt = s.now()
	v.Active = true
	for _, other := range s.versions {
		if other.ImageTranslationID == v.ImageTranslationID {
			other.Active = false
		}
	}
	cp := *v
	s.versions[v.ID] = &cp
	return nil
}

func (s *Store) ActivateVersion(_ context.Context, translationID, versionID string) (*domain.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.versions[versionID]
	if !ok || target.ImageTranslationID != translationID {
		return nil, domain.ErrNotFound
	}
	for _, other := range s.versions {
		if other.ImageTranslationID == translationID {
			other.Active = other.ID == versionID
		}
	}
	if t, ok := s.translations[translationID]; ok {
		t.ActiveVersionID = versionID
		t.TranslatedURL = target.URL
	}
	cp := *target
	return &cp, nil
}

func (s *Store) ListVersions(_ context.Context, translationID string) ([]domain.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Version
	for _, v := range s.versions {
		if v.ImageTranslationID == translationID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListPendingTranslations(_ context.Context, staleBefore time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []*domain.ImageTranslation
	for _, t := range s.translations {
		if t.Status == domain.StatusPending || (t.Status == domain.StatusProcessing && t.UpdatedAt.Before(staleBefore)) {
			items = append(items, t)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.Before(items[j].UpdatedAt) })
	return limitIDs(len(items), limit, func(i int) string { return items[i].ID }), nil
}

func (s *Store) ListPendingExpansions(_ context.Context, staleBefore time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []*domain.SourceImage
	for _, img := range s.images {
		job, ok := s.jobs[img.JobID]
		if !ok || job.Status != domain.StatusExpanding {
			continue
		}
		if img.ExpansionStatus == domain.StatusPending || (img.ExpansionStatus == domain.StatusProcessing && img.UpdatedAt.Before(staleBefore)) {
			items = append(items, img)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.Before(items[j].UpdatedAt) })
	return limitIDs(len(items), limit, func(i int) string { return items[i].ID }), nil
}

// ---- page translations ----

func (s *Store) CreateTranslation(_ context.Context, t *domain.Translation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	s.pages[t.ID] = &cp
	return nil
}

func (s *Store) GetTranslation(_ context.Context, id string) (*domain.Translation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.pages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *Store) SaveContent(_ context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.pages[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.TranslatedContent = content
	return nil
}

func (s *Store) SaveQuality(_ context.Context, id string, score int, analysis []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.pages[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.QualityScore = &score
	v.QualityAnalysis = append([]byte(nil), analysis...)
	return nil
}

func (s *Store) SavePublishedURL(_ context.Context, id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.pages[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.PublishedURL = url
	return nil
}

// ---- A/B tests ----

func (s *Store) CreateABTest(_ context.Context, test *domain.ABTest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	now := s.now()
	test.CreatedAt, test.UpdatedAt = now, now
	cp := *test
	s.abtests[test.ID] = &cp
	return nil
}

func (s *Store) GetABTest(_ context.Context, id string) (*domain.ABTest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.abtests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *Store) SetWinner(_ context.Context, id, winner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.abtests[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.Winner = winner
	return nil
}

func (s *Store) DeleteABTest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.abtests[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.pages, v.VariantTranslationID)
	delete(s.abtests, id)
	return nil
}

// ---- campaigns ----

func (s *Store) CreateCampaign(_ context.Context, c *domain.Campaign, ads []domain.Ad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	s.campaigns[c.ID] = &cp
	for i := range ads {
		ad := ads[i]
		if ad.ID == "" {
			ad.ID = uuid.NewString()
		}
		ad.CampaignID = c.ID
		ad.CreatedAt, ad.UpdatedAt = now, now
		s.ads[ad.ID] = &ad
		ads[i] = ad
	}
	return nil
}

func (s *Store) GetCampaign(_ context.Context, id string) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *Store) ListAds(_ context.Context, campaignID string) ([]domain.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Ad
	for _, ad := range s.ads {
		if ad.CampaignID == campaignID {
			out = append(out, *ad)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetAd(_ context.Context, id string) (*domain.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.ads[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *Store) SetPlatformIDs(_ context.Context, id, platformCampaignID, platformAdSetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.campaigns[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.PlatformCampaignID = platformCampaignID
	v.PlatformAdSetID = platformAdSetID
	return nil
}

func (s *Store) SetAdResult(_ context.Context, id, imageHash, platformAdID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.ads[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.ImageHash = imageHash
	v.PlatformAdID = platformAdID
	return nil
}

func translationKey(sourceImageID, language string, ratio domain.Ratio) string {
	return sourceImageID + "|" + language + "|" + string(ratio)
}

func limitIDs(n, limit int, id func(int) string) []string {
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, id(i))
	}
	return out
}

func containsStatus(list []domain.Status, s domain.Status) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

var (
	_ claim.Store                  = (*Store)(nil)
	_ domain.ImageJobRepository    = (*Store)(nil)
	_ domain.TranslationRepository = (*Store)(nil)
	_ domain.ABTestRepository      = (*Store)(nil)
	_ domain.CampaignRepository    = (*Store)(nil)
)
