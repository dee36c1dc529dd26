package repo

import (
	"context"

	"adflow/internal/domain"
	"adflow/internal/sqlinline"
)

func (s *Store) CreateABTest(ctx context.Context, test *domain.ABTest) error {
	err := s.db.QueryRow(ctx, sqlinline.QInsertABTest,
		test.PageID,
		test.Language,
		test.ControlTranslationID,
		test.VariantTranslationID,
		test.SplitPercentage,
		string(test.Status),
	).Scan(&test.ID, &test.CreatedAt, &test.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetABTest(ctx context.Context, id string) (*domain.ABTest, error) {
	var (
		test   domain.ABTest
		status string
	)
	err := s.db.QueryRow(ctx, sqlinline.QSelectABTest, id).Scan(
		&test.ID,
		&test.PageID,
		&test.Language,
		&test.ControlTranslationID,
		&test.VariantTranslationID,
		&test.SplitPercentage,
		&status,
		&test.Winner,
		&test.ErrorMessage,
		&test.CreatedAt,
		&test.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	test.Status = domain.Status(status)
	return &test, nil
}

func (s *Store) SetWinner(ctx context.Context, id, winner string) error {
	return requireRow(s.db.Exec(ctx, sqlinline.QUpdateABTestWinner, id, winner))
}

// DeleteABTest removes the test and its variant in one statement.
func (s *Store) DeleteABTest(ctx context.Context, id string) error {
	var deleted int64
	if err := s.db.QueryRow(ctx, sqlinline.QDeleteABTest, id).Scan(&deleted); err != nil {
		return mapErr(err)
	}
	if deleted == 0 {
		return domain.ErrNotFound
	}
	return nil
}
