package memstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adflow/internal/domain"
)

func seedJob(t *testing.T, s *Store) (*domain.ImageJob, []domain.SourceImage) {
	t.Helper()
	job := &domain.ImageJob{Name: "j", Languages: []string{"de"}, Ratios: []domain.Ratio{domain.RatioSquare}, Status: domain.StatusDraft}
	images := []domain.SourceImage{
		{Position: 0, OriginalURL: "https://src.example.com/b.png", ExpansionStatus: domain.StatusPending},
		{Position: 1, OriginalURL: "https://src.example.com/a.png", ExpansionStatus: domain.StatusPending},
	}
	require.NoError(t, s.CreateJob(context.Background(), job, images))
	return job, images
}

func TestCompareAndSwapHasOneWinner(t *testing.T) {
	s := New()
	job, _ := seedJob(t, s)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CompareAndSwap(context.Background(), domain.EntityImageJob, job.ID,
				[]domain.Status{domain.StatusDraft}, domain.StatusExpanding, "")
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
	assert.Equal(t, 1, s.Swaps[domain.EntityImageJob])

	ok, err := s.CompareAndSwap(context.Background(), domain.EntityImageJob, "missing", nil, domain.StatusReady, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecoverStaleOnlyPastCutoff(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	s := New()
	s.SetNow(func() time.Time { return now })
	_, images := seedJob(t, s)
	ctx := context.Background()
	id := images[0].ID

	ok, err := s.CompareAndSwap(ctx, domain.EntitySourceImage, id, []domain.Status{domain.StatusPending}, domain.StatusProcessing, "")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.RecoverStale(ctx, domain.EntitySourceImage, id, domain.StatusProcessing, now.Add(-10*time.Minute), domain.StatusFailed, "stale")
	require.NoError(t, err)
	assert.False(t, ok, "fresh claim must survive")

	s.Touch(domain.EntitySourceImage, id, now.Add(-11*time.Minute))
	ok, err = s.RecoverStale(ctx, domain.EntitySourceImage, id, domain.StatusProcessing, now.Add(-10*time.Minute), domain.StatusFailed, "stale")
	require.NoError(t, err)
	assert.True(t, ok)

	status, updated, err := s.Snapshot(ctx, domain.EntitySourceImage, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, status)
	assert.Equal(t, now, updated)
	img, err := s.GetSourceImage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "stale", img.ExpansionError)
}

func TestListSourceImagesKeepsIntakeOrder(t *testing.T) {
	s := New()
	job, _ := seedJob(t, s)
	images, err := s.ListSourceImages(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "https://src.example.com/b.png", images[0].OriginalURL)
	assert.Equal(t, 1, images[1].Position)

	_, _, err = s.Snapshot(context.Background(), domain.EntityAd, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
