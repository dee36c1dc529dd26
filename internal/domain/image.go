package domain

import "time"

// Ratio is a target aspect ratio for generated images.
type Ratio string

const (
	RatioSquare   Ratio = "1:1"
	RatioVertical Ratio = "9:16"
)

// ImageJob is a batch of source images translated into several languages
// and ratios.
type ImageJob struct {
	ID           string
	Name         string
	Languages    []string
	Ratios       []Ratio
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRatio reports whether the job targets the ratio.
func (j *ImageJob) HasRatio(r Ratio) bool {
	for _, candidate := range j.Ratios {
		if candidate == r {
			return true
		}
	}
	return false
}

// SourceImage is one uploaded asset of an ImageJob. The expansion fields
// track the optional 9:16 outpainting step.
type SourceImage struct {
	ID              string
	JobID           string
	Position        int
	OriginalURL     string
	ExpansionStatus Status
	ExpandedURL     string
	ExpansionError  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ImageTranslation is a (source image, language, ratio) unit of generation.
type ImageTranslation struct {
	ID              string
	JobID           string
	SourceImageID   string
	Language        string
	Ratio           Ratio
	Status          Status
	TranslatedURL   string
	ErrorMessage    string
	ActiveVersionID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Version is one generated artifact of an ImageTranslation. Rows are never
// rewritten apart from the Active flag.
type Version struct {
	ID                 string
	ImageTranslationID string
	URL                string
	TaskID             string
	QualityScore       *int
	QualityAnalysis    []byte
	ExtractedText      string
	GenerationDuration time.Duration
	Active             bool
	CreatedAt          time.Time
}
