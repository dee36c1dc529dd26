// Package repo implements the claim store and the domain repositories on
// PostgreSQL through marker-tagged statements.
package repo

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"adflow/internal/claim"
	"adflow/internal/domain"
	"adflow/internal/infra"
)

// Store is the PostgreSQL store. Every status column is written only by the
// claim statements in claims.go.
type Store struct {
	db infra.SQLExecutor
}

// NewStore wraps a SQL executor, normally an *infra.SQLRunner.
func NewStore(db infra.SQLExecutor) *Store {
	return &Store{db: db}
}

var (
	_ claim.Store                  = (*Store)(nil)
	_ domain.ImageJobRepository    = (*Store)(nil)
	_ domain.TranslationRepository = (*Store)(nil)
	_ domain.ABTestRepository       = (*Store)(nil)
	_ domain.CampaignRepository     = (*Store)(nil)
)

// mapErr translates driver errors into domain errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02": // invalid_text_representation, e.g. a malformed uuid
			return fmt.Errorf("%w: malformed id", domain.ErrNotFound)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", domain.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

// requireRow maps an update that touched nothing to ErrNotFound.
func requireRow(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
