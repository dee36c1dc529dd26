package repo

import (
	"context"
	"fmt"
	"time"

	"adflow/internal/domain"
	"adflow/internal/sqlinline"
)

type statusColumns struct {
	table, status, errMsg string
}

type claimQueries struct {
	cas, recoverStale, snapshot string
}

var claimTables = map[domain.Entity]statusColumns{
	domain.EntityImageJob:         {"image_jobs", "status", "error_message"},
	domain.EntitySourceImage:      {"source_images", "expansion_status", "expansion_error"},
	domain.EntityImageTranslation: {"image_translations", "status", "error_message"},
	domain.EntityTranslation:      {"translations", "status", "error_message"},
	domain.EntityABTest:           {"ab_tests", "status", "error_message"},
	domain.EntityCampaign:         {"meta_campaigns", "status", "error_message"},
	domain.EntityAd:               {"meta_ads", "status", "error_message"},
}

var claimSQL = buildClaimSQL()

func buildClaimSQL() map[domain.Entity]claimQueries {
	out := make(map[domain.Entity]claimQueries, len(claimTables))
	for entity, c := range claimTables {
		out[entity] = claimQueries{
			cas:          fmt.Sprintf(sqlinline.QClaimCompareAndSwapTmpl, c.table, c.status, c.errMsg),
			recoverStale: fmt.Sprintf(sqlinline.QClaimRecoverStaleTmpl, c.table, c.status, c.errMsg),
			snapshot:     fmt.Sprintf(sqlinline.QClaimSnapshotTmpl, c.table, c.status, c.errMsg),
		}
	}
	return out
}

func queriesFor(entity domain.Entity) (claimQueries, error) {
	q, ok := claimSQL[entity]
	if !ok {
		return claimQueries{}, fmt.Errorf("repo: no table for entity %q", entity)
	}
	return q, nil
}

// CompareAndSwap implements claim.Store with a single conditional UPDATE.
func (s *Store) CompareAndSwap(ctx context.Context, entity domain.Entity, id string, from []domain.Status, to domain.Status, errMsg string) (bool, error) {
	q, err := queriesFor(entity)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, q.cas, id, domain.Statuses(from...), string(to), errMsg)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecoverStale implements claim.Store.
func (s *Store) RecoverStale(ctx context.Context, entity domain.Entity, id string, working domain.Status, cutoff time.Time, to domain.Status, errMsg string) (bool, error) {
	q, err := queriesFor(entity)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, q.recoverStale, id, string(working), cutoff, string(to), errMsg)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

// Snapshot implements claim.Store.
func (s *Store) Snapshot(ctx context.Context, entity domain.Entity, id string) (domain.Status, time.Time, error) {
	q, err := queriesFor(entity)
	if err != nil {
		return "", time.Time{}, err
	}
	var (
		status    string
		updatedAt time.Time
	)
	if err := s.db.QueryRow(ctx, q.snapshot, id).Scan(&status, &updatedAt); err != nil {
		return "", time.Time{}, fmt.Errorf("%s %s: %w", entity, id, mapErr(err))
	}
	return domain.Status(status), updatedAt, nil
}
