package aggregate_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adflow/internal/aggregate"
	"adflow/internal/claim"
	"adflow/internal/domain"
	"adflow/internal/store/memstore"
)

func TestRecompute(t *testing.T) {
	cases := []struct {
		name     string
		rule     aggregate.Rule
		children []domain.Status
		want     domain.Status
		ready    bool
	}{
		{"job waits on processing child", aggregate.JobTranslation, []domain.Status{domain.StatusCompleted, domain.StatusFailed, domain.StatusProcessing}, "", false},
		{"job waits on pending child", aggregate.JobTranslation, []domain.Status{domain.StatusPending}, "", false},
		{"partial failure completes", aggregate.JobTranslation, []domain.Status{domain.StatusCompleted, domain.StatusFailed, domain.StatusFailed}, domain.StatusCompleted, true},
		{"all failed fails", aggregate.JobTranslation, []domain.Status{domain.StatusFailed, domain.StatusFailed}, domain.StatusFailed, true},
		{"no translations completes", aggregate.JobTranslation, nil, domain.StatusCompleted, true},
		{"expansion done", aggregate.JobExpansion, []domain.Status{domain.StatusCompleted, domain.StatusFailed}, domain.StatusReady, true},
		{"expansion running", aggregate.JobExpansion, []domain.Status{domain.StatusCompleted, domain.StatusProcessing}, "", false},
		{"campaign with one pushed ad", aggregate.CampaignPush, []domain.Status{domain.StatusError, domain.StatusPushed}, domain.StatusPushed, true},
		{"campaign with no pushed ad", aggregate.CampaignPush, []domain.Status{domain.StatusError, domain.StatusError}, domain.StatusError, true},
		{"campaign without ads", aggregate.CampaignPush, nil, domain.StatusPushed, true},
		{"campaign uploading", aggregate.CampaignPush, []domain.Status{domain.StatusPushed, domain.StatusUploading}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ready := aggregate.Recompute(tc.rule, tc.children)
			assert.Equal(t, tc.ready, ready)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRecomputeIgnoresChildOrder(t *testing.T) {
	a, _ := aggregate.Recompute(aggregate.JobTranslation, []domain.Status{domain.StatusFailed, domain.StatusCompleted})
	b, _ := aggregate.Recompute(aggregate.JobTranslation, []domain.Status{domain.StatusCompleted, domain.StatusFailed})
	assert.Equal(t, a, b)
}

func newJob(t *testing.T, store *memstore.Store, status domain.Status) string {
	t.Helper()
	job := &domain.ImageJob{Languages: []string{"de"}, Ratios: []domain.Ratio{domain.RatioSquare}, Status: status}
	require.NoError(t, store.CreateJob(context.Background(), job, nil))
	return job.ID
}

func TestApplyDoesNotAdvanceWhileChildWorks(t *testing.T) {
	store := memstore.New()
	adv := aggregate.NewAdvancer(claim.NewCoordinator(store, claim.Options{}), nil)
	jobID := newJob(t, store, domain.StatusProcessing)

	_, moved, err := adv.Apply(context.Background(), aggregate.JobTranslation, jobID,
		[]domain.Status{domain.StatusCompleted, domain.StatusFailed, domain.StatusProcessing})
	require.NoError(t, err)
	assert.False(t, moved)

	job, err := store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, job.Status)
}

func TestApplyAdvancesExactlyOnceUnderConcurrency(t *testing.T) {
	store := memstore.New()
	adv := aggregate.NewAdvancer(claim.NewCoordinator(store, claim.Options{}), nil)
	jobID := newJob(t, store, domain.StatusProcessing)
	children := []domain.Status{domain.StatusCompleted, domain.StatusFailed, domain.StatusFailed}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		moves int
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, moved, err := adv.Apply(context.Background(), aggregate.JobTranslation, jobID, children)
			assert.NoError(t, err)
			if moved {
				mu.Lock()
				moves++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, moves)
	assert.Equal(t, 1, store.Swaps[domain.EntityImageJob])
	job, err := store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, job.Status)
}
