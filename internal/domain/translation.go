package domain

import "time"

// Translation is a page rendered into one language, optionally as an A/B
// variant.
type Translation struct {
	ID                string
	PageID            string
	Language          string
	Variant           string
	Status            Status
	SourceContent     string
	TranslatedContent string
	QualityScore      *int
	QualityAnalysis   []byte
	PublishedURL      string
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Correction is a single find/replace suggested by the analysis service.
type Correction struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

// QualityIssue is a problem reported for a candidate translation.
type QualityIssue struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// QualityAnalysis is what gets stored alongside a quality score.
type QualityAnalysis struct {
	Score                int            `json:"score"`
	RawScore             int            `json:"raw_score"`
	Issues               []QualityIssue `json:"issues"`
	SuggestedCorrections []Correction   `json:"suggested_corrections,omitempty"`
	AppliedCorrections   []Correction   `json:"applied_corrections,omitempty"`
	FailedCorrections    []Correction   `json:"failed_corrections,omitempty"`
	PreviousScore        *int           `json:"previous_score,omitempty"`
}

// ABTest pairs a control and variant translation of one page and language.
type ABTest struct {
	ID                   string
	PageID               string
	Language             string
	ControlTranslationID string
	VariantTranslationID string
	SplitPercentage      int
	Status               Status
	Winner               string
	ErrorMessage         string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

const (
	WinnerControl = "control"
	WinnerVariant = "variant"
)
