package repo

import (
	"context"

	"adflow/internal/domain"
	"adflow/internal/sqlinline"
)

func (s *Store) CreateTranslation(ctx context.Context, t *domain.Translation) error {
	err := s.db.QueryRow(ctx, sqlinline.QInsertTranslation,
		t.PageID,
		t.Language,
		t.Variant,
		string(t.Status),
		t.SourceContent,
		t.TranslatedContent,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetTranslation(ctx context.Context, id string) (*domain.Translation, error) {
	var (
		t      domain.Translation
		status string
	)
	err := s.db.QueryRow(ctx, sqlinline.QSelectTranslation, id).Scan(
		&t.ID,
		&t.PageID,
		&t.Language,
		&t.Variant,
		&status,
		&t.SourceContent,
		&t.TranslatedContent,
		&t.QualityScore,
		&t.QualityAnalysis,
		&t.PublishedURL,
		&t.ErrorMessage,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	t.Status = domain.Status(status)
	return &t, nil
}

func (s *Store) SaveContent(ctx context.Context, id, content string) error {
	return requireRow(s.db.Exec(ctx, sqlinline.QUpdateTranslationContent, id, content))
}

func (s *Store) SaveQuality(ctx context.Context, id string, score int, analysis []byte) error {
	return requireRow(s.db.Exec(ctx, sqlinline.QUpdateTranslationQuality, id, score, nullableBytes(analysis)))
}

func (s *Store) SavePublishedURL(ctx context.Context, id, url string) error {
	return requireRow(s.db.Exec(ctx, sqlinline.QUpdateTranslationPublishedURL, id, url))
}
