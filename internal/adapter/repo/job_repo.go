package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"adflow/internal/domain"
	"adflow/internal/sqlinline"
)

// CreateJob inserts the job and its source images in one statement.
func (s *Store) CreateJob(ctx context.Context, job *domain.ImageJob, images []domain.SourceImage) error {
	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = img.OriginalURL
	}
	ratios := make([]string, len(job.Ratios))
	for i, r := range job.Ratios {
		ratios[i] = string(r)
	}
	var (
		id        string
		createdAt time.Time
		imageIDs  []string
	)
	err := s.db.QueryRow(ctx, sqlinline.QInsertImageJob,
		job.Name,
		job.Languages,
		ratios,
		string(job.Status),
		string(domain.StatusPending),
		urls,
	).Scan(&id, &createdAt, &imageIDs)
	if err != nil {
		return mapErr(err)
	}
	if len(imageIDs) != len(images) {
		return fmt.Errorf("repo: inserted %d source images, want %d", len(imageIDs), len(images))
	}
	job.ID, job.CreatedAt, job.UpdatedAt = id, createdAt, createdAt
	for i := range images {
		images[i].ID = imageIDs[i]
		images[i].JobID = id
		images[i].Position = i
		images[i].ExpansionStatus = domain.StatusPending
		images[i].CreatedAt, images[i].UpdatedAt = createdAt, createdAt
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.ImageJob, error) {
	var (
		job    domain.ImageJob
		status string
		ratios []string
	)
	err := s.db.QueryRow(ctx, sqlinline.QSelectImageJob, id).Scan(
		&job.ID,
		&job.Name,
		&job.Languages,
		&ratios,
		&status,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	job.Status = domain.Status(status)
	for _, r := range ratios {
		job.Ratios = append(job.Ratios, domain.Ratio(r))
	}
	return &job, nil
}

// DeleteJob relies on foreign key cascades for images, translations and
// versions.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	return requireRow(s.db.Exec(ctx, sqlinline.QDeleteImageJob, id))
}

func scanSourceImage(row pgx.Row) (domain.SourceImage, error) {
	var (
		img    domain.SourceImage
		status string
	)
	err := row.Scan(
		&img.ID,
		&img.JobID,
		&img.Position,
		&img.OriginalURL,
		&status,
		&img.ExpandedURL,
		&img.ExpansionError,
		&img.CreatedAt,
		&img.UpdatedAt,
	)
	img.ExpansionStatus = domain.Status(status)
	return img, err
}

func (s *Store) ListSourceImages(ctx context.Context, jobID string) ([]domain.SourceImage, error) {
	rows, err := s.db.Query(ctx, sqlinline.QListSourceImages, jobID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []domain.SourceImage
	for rows.Next() {
		img, err := scanSourceImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) GetSourceImage(ctx context.Context, id string) (*domain.SourceImage, error) {
	img, err := scanSourceImage(s.db.QueryRow(ctx, sqlinline.QSelectSourceImage, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &img, nil
}

func (s *Store) SetExpandedURL(ctx context.Context, id, url string) error {
	return requireRow(s.db.Exec(ctx, sqlinline.QUpdateExpandedURL, id, url))
}

// InsertImageTranslations inserts rows in one statement; existing
// (source image, language, ratio) keys are skipped.
func (s *Store) InsertImageTranslations(ctx context.Context, rows []domain.ImageTranslation) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	jobIDs := make([]string, len(rows))
	imageIDs := make([]string, len(rows))
	langs := make([]string, len(rows))
	ratios := make([]string, len(rows))
	statuses := make([]string, len(rows))
	for i, r := range rows {
		jobIDs[i] = r.JobID
		imageIDs[i] = r.SourceImageID
		langs[i] = r.Language
		ratios[i] = string(r.Ratio)
		statuses[i] = string(r.Status)
	}
	tag, err := s.db.Exec(ctx, sqlinline.QInsertImageTranslations, jobIDs, imageIDs, langs, ratios, statuses)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func scanImageTranslation(row pgx.Row) (domain.ImageTranslation, error) {
	var (
		t             domain.ImageTranslation
		ratio, status string
	)
	err := row.Scan(
		&t.ID,
		&t.JobID,
		&t.SourceImageID,
		&t.Language,
		&ratio,
		&status,
		&t.TranslatedURL,
		&t.ErrorMessage,
		&t.ActiveVersionID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	t.Ratio = domain.Ratio(ratio)
	t.Status = domain.Status(status)
	return t, err
}

func (s *Store) GetImageTranslation(ctx context.Context, id string) (*domain.ImageTranslation, error) {
	t, err := scanImageTranslation(s.db.QueryRow(ctx, sqlinline.QSelectImageTranslation, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (s *Store) ListImageTranslations(ctx context.Context, jobID string) ([]domain.ImageTranslation, error) {
	rows, err := s.db.Query(ctx, sqlinline.QListImageTranslations, jobID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []domain.ImageTranslation
	for rows.Next() {
		t, err := scanImageTranslation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) SetTranslatedURL(ctx context.Context, id, url, versionID string) error {
	return requireRow(s.db.Exec(ctx, sqlinline.QUpdateTranslatedURL, id, url, versionID))
}

func (s *Store) AppendVersion(ctx context.Context, v *domain.Version) error {
	err := s.db.QueryRow(ctx, sqlinline.QInsertActiveVersion,
		v.ImageTranslationID,
		v.URL,
		v.TaskID,
		v.QualityScore,
		nullableBytes(v.QualityAnalysis),
		v.ExtractedText,
		v.GenerationDuration.Milliseconds(),
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	v.Active = true
	return nil
}

func scanVersion(row pgx.Row) (domain.Version, error) {
	var (
		v  domain.Version
		ms int64
	)
	err := row.Scan(
		&v.ID,
		&v.ImageTranslationID,
		&v.URL,
		&v.TaskID,
		&v.QualityScore,
		&v.QualityAnalysis,
		&v.ExtractedText,
		&ms,
		&v.Active,
		&v.CreatedAt,
	)
	v.GenerationDuration = time.Duration(ms) * time.Millisecond
	return v, err
}

func (s *Store) ActivateVersion(ctx context.Context, translationID, versionID string) (*domain.Version, error) {
	v, err := scanVersion(s.db.QueryRow(ctx, sqlinline.QActivateVersion, translationID, versionID))
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func (s *Store) ListVersions(ctx context.Context, translationID string) ([]domain.Version, error) {
	rows, err := s.db.Query(ctx, sqlinline.QListVersions, translationID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []domain.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) ListPendingTranslations(ctx context.Context, staleBefore time.Time, limit int) ([]string, error) {
	return s.listIDs(ctx, sqlinline.QListPendingImageTranslations, staleBefore, limit)
}

func (s *Store) ListPendingExpansions(ctx context.Context, staleBefore time.Time, limit int) ([]string, error) {
	return s.listIDs(ctx, sqlinline.QListPendingExpansions, staleBefore, limit)
}

func (s *Store) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, mapErr(rows.Err())
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
