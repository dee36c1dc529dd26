package handlers

import (
	"encoding/json"
	"time"

	"adflow/internal/domain"
)

type imageJobView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Languages    []string  `json:"languages"`
	Ratios       []string  `json:"ratios"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newImageJobView(j *domain.ImageJob) imageJobView {
	ratios := make([]string, len(j.Ratios))
	for i, r := range j.Ratios {
		ratios[i] = string(r)
	}
	return imageJobView{
		ID:           j.ID,
		Name:         j.Name,
		Languages:    j.Languages,
		Ratios:       ratios,
		Status:       string(j.Status),
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

type sourceImageView struct {
	ID              string `json:"id"`
	Position        int    `json:"position"`
	OriginalURL     string `json:"original_url"`
	ExpansionStatus string `json:"expansion_status"`
	ExpandedURL     string `json:"expanded_url,omitempty"`
	ExpansionError  string `json:"expansion_error,omitempty"`
}

func newSourceImageView(img *domain.SourceImage) sourceImageView {
	return sourceImageView{
		ID:              img.ID,
		Position:        img.Position,
		OriginalURL:     img.OriginalURL,
		ExpansionStatus: string(img.ExpansionStatus),
		ExpandedURL:     img.ExpandedURL,
		ExpansionError:  img.ExpansionError,
	}
}

func sourceImageViews(images []domain.SourceImage) []sourceImageView {
	out := make([]sourceImageView, len(images))
	for i := range images {
		out[i] = newSourceImageView(&images[i])
	}
	return out
}

type imageTranslationView struct {
	ID              string    `json:"id"`
	SourceImageID   string    `json:"source_image_id"`
	Language        string    `json:"language"`
	Ratio           string    `json:"ratio"`
	Status          string    `json:"status"`
	TranslatedURL   string    `json:"translated_url,omitempty"`
	ActiveVersionID string    `json:"active_version_id,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newImageTranslationView(t *domain.ImageTranslation) imageTranslationView {
	return imageTranslationView{
		ID:              t.ID,
		SourceImageID:   t.SourceImageID,
		Language:        t.Language,
		Ratio:           string(t.Ratio),
		Status:          string(t.Status),
		TranslatedURL:   t.TranslatedURL,
		ActiveVersionID: t.ActiveVersionID,
		ErrorMessage:    t.ErrorMessage,
		UpdatedAt:       t.UpdatedAt,
	}
}

func imageTranslationViews(items []domain.ImageTranslation) []imageTranslationView {
	out := make([]imageTranslationView, len(items))
	for i := range items {
		out[i] = newImageTranslationView(&items[i])
	}
	return out
}

type versionView struct {
	ID              string          `json:"id"`
	URL             string          `json:"url"`
	TaskID          string          `json:"task_id,omitempty"`
	QualityScore    *int            `json:"quality_score,omitempty"`
	QualityAnalysis json.RawMessage `json:"quality_analysis,omitempty"`
	GenerationMS    int64           `json:"generation_ms"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
}

func newVersionView(v *domain.Version) versionView {
	return versionView{
		ID:              v.ID,
		URL:             v.URL,
		TaskID:          v.TaskID,
		QualityScore:    v.QualityScore,
		QualityAnalysis: rawJSON(v.QualityAnalysis),
		GenerationMS:    v.GenerationDuration.Milliseconds(),
		Active:          v.Active,
		CreatedAt:       v.CreatedAt,
	}
}

type translationView struct {
	ID                string          `json:"id"`
	PageID            string          `json:"page_id"`
	Language          string          `json:"language"`
	Variant           string          `json:"variant,omitempty"`
	Status            string          `json:"status"`
	TranslatedContent string          `json:"translated_content,omitempty"`
	QualityScore      *int            `json:"quality_score,omitempty"`
	QualityAnalysis   json.RawMessage `json:"quality_analysis,omitempty"`
	PublishedURL      string          `json:"published_url,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func newTranslationView(t *domain.Translation) translationView {
	return translationView{
		ID:                t.ID,
		PageID:            t.PageID,
		Language:          t.Language,
		Variant:           t.Variant,
		Status:            string(t.Status),
		TranslatedContent: t.TranslatedContent,
		QualityScore:      t.QualityScore,
		QualityAnalysis:   rawJSON(t.QualityAnalysis),
		PublishedURL:      t.PublishedURL,
		ErrorMessage:      t.ErrorMessage,
		UpdatedAt:         t.UpdatedAt,
	}
}

type abTestView struct {
	ID                   string `json:"id"`
	PageID               string `json:"page_id"`
	Language             string `json:"language"`
	ControlTranslationID string `json:"control_translation_id"`
	VariantTranslationID string `json:"variant_translation_id"`
	SplitPercentage      int    `json:"split_percentage"`
	Status               string `json:"status"`
	Winner               string `json:"winner,omitempty"`
}

func newABTestView(t *domain.ABTest) abTestView {
	return abTestView{
		ID:                   t.ID,
		PageID:               t.PageID,
		Language:             t.Language,
		ControlTranslationID: t.ControlTranslationID,
		VariantTranslationID: t.VariantTranslationID,
		SplitPercentage:      t.SplitPercentage,
		Status:               string(t.Status),
		Winner:               t.Winner,
	}
}

type campaignView struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Objective          string `json:"objective"`
	DailyBudgetCents   int64  `json:"daily_budget_cents"`
	TemplateAdSetID    string `json:"template_ad_set_id,omitempty"`
	PlatformCampaignID string `json:"platform_campaign_id,omitempty"`
	PlatformAdSetID    string `json:"platform_ad_set_id,omitempty"`
	Status             string `json:"status"`
	ErrorMessage       string `json:"error_message,omitempty"`
}

func newCampaignView(c *domain.Campaign) campaignView {
	return campaignView{
		ID:                 c.ID,
		Name:               c.Name,
		Objective:          c.Objective,
		DailyBudgetCents:   c.DailyBudgetCents,
		TemplateAdSetID:    c.TemplateAdSetID,
		PlatformCampaignID: c.PlatformCampaignID,
		PlatformAdSetID:    c.PlatformAdSetID,
		Status:             string(c.Status),
		ErrorMessage:       c.ErrorMessage,
	}
}

type adView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ImageURL     string `json:"image_url"`
	Status       string `json:"status"`
	PlatformAdID string `json:"platform_ad_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func adViews(ads []domain.Ad) []adView {
	out := make([]adView, len(ads))
	for i, ad := range ads {
		out[i] = adView{
			ID:           ad.ID,
			Name:         ad.Name,
			ImageURL:     ad.ImageURL,
			Status:       string(ad.Status),
			PlatformAdID: ad.PlatformAdID,
			ErrorMessage: ad.ErrorMessage,
		}
	}
	return out
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
