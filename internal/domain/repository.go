package domain

import (
	"context"
	"time"
)

// Repositories never write status columns after creation; status changes go
// through the claim package's conditional updates.

// ImageJobRepository persists image jobs and everything they own.
type ImageJobRepository interface {
	CreateJob(ctx context.Context, job *ImageJob, images []SourceImage) error
	GetJob(ctx context.Context, id string) (*ImageJob, error)
	// DeleteJob removes the job and cascades to images, translations and versions.
	DeleteJob(ctx context.Context, id string) error
	ListSourceImages(ctx context.Context, jobID string) ([]SourceImage, error)
	GetSourceImage(ctx context.Context, id string) (*SourceImage, error)
	SetExpandedURL(ctx context.Context, id, url string) error
	// InsertImageTranslations skips rows whose (source image, language, ratio)
	// already exists and returns how many were inserted.
	InsertImageTranslations(ctx context.Context, rows []ImageTranslation) (int, error)
	GetImageTranslation(ctx context.Context, id string) (*ImageTranslation, error)
	ListImageTranslations(ctx context.Context, jobID string) ([]ImageTranslation, error)
	SetTranslatedURL(ctx context.Context, id, url, versionID string) error
	// AppendVersion inserts v as the active version and deactivates the others.
	AppendVersion(ctx context.Context, v *Version) error
	ActivateVersion(ctx context.Context, translationID, versionID string) (*Version, error)
	ListVersions(ctx context.Context, translationID string) ([]Version, error)
	// ListPendingTranslations returns pending items plus processing items not
	// updated since staleBefore.
	ListPendingTranslations(ctx context.Context, staleBefore time.Time, limit int) ([]string, error)
	ListPendingExpansions(ctx context.Context, staleBefore time.Time, limit int) ([]string, error)
}

// TranslationRepository persists page translations.
type TranslationRepository interface {
	CreateTranslation(ctx context.Context, t *Translation) error
	GetTranslation(ctx context.Context, id string) (*Translation, error)
	SaveContent(ctx context.Context, id, content string) error
	SaveQuality(ctx context.Context, id string, score int, analysis []byte) error
	SavePublishedURL(ctx context.Context, id, url string) error
}

// ABTestRepository persists A/B tests.
type ABTestRepository interface {
	CreateABTest(ctx context.Context, test *ABTest) error
	GetABTest(ctx context.Context, id string) (*ABTest, error)
	SetWinner(ctx context.Context, id, winner string) error
	// DeleteABTest removes the test and its variant translation; the control
	// translation is kept.
	DeleteABTest(ctx context.Context, id string) error
}

// CampaignRepository persists ad campaigns and their ads.
type CampaignRepository interface {
	CreateCampaign(ctx context.Context, c *Campaign, ads []Ad) error
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
	ListAds(ctx context.Context, campaignID string) ([]Ad, error)
	GetAd(ctx context.Context, id string) (*Ad, error)
	SetPlatformIDs(ctx context.Context, id, platformCampaignID, platformAdSetID string) error
	SetAdResult(ctx context.Context, id, imageHash, platformAdID string) error
}
