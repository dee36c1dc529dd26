package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"

	"adflow/internal/domain"
	"adflow/pkg/zip"
)

// ExportJob collects the active image of every completed translation of a
// job as archive entries named <language>/<image>_<ratio><ext>. Files that
// cannot be read are skipped.
func (s *Service) ExportJob(ctx context.Context, jobID string) ([]zip.Entry, error) {
	detail, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if s.Objects == nil {
		return nil, fmt.Errorf("%w: object storage is not configured", domain.ErrUpstream)
	}
	positions := make(map[string]int, len(detail.Images))
	for _, img := range detail.Images {
		positions[img.ID] = img.Position
	}
	var entries []zip.Entry
	for _, it := range detail.Translations {
		if it.Status != domain.StatusCompleted || it.TranslatedURL == "" {
			continue
		}
		data, err := s.Objects.Read(ctx, it.TranslatedURL)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Str("image_translation_id", it.ID).Msg("pipeline: export skipped file")
			continue
		}
		entries = append(entries, zip.Entry{
			Name:     exportName(it, positions[it.SourceImageID]),
			Data:     data,
			Modified: it.UpdatedAt,
		})
	}
	return entries, nil
}

func exportName(it domain.ImageTranslation, position int) string {
	ratio := strings.ReplaceAll(string(it.Ratio), ":", "x")
	return fmt.Sprintf("%s/%02d_%s%s", it.Language, position+1, ratio, path.Ext(it.TranslatedURL))
}
