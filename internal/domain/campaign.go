package domain

import "time"

// Campaign is a set of ads pushed together to the ad platform.
type Campaign struct {
	ID                 string
	Name               string
	Objective          string
	DailyBudgetCents   int64
	TemplateAdSetID    string
	PlatformCampaignID string
	PlatformAdSetID    string
	Status             Status
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Ad is one creative inside a Campaign.
type Ad struct {
	ID           string
	CampaignID   string
	Name         string
	ImageURL     string
	PrimaryText  string
	Headline     string
	LinkURL      string
	ImageHash    string
	PlatformAdID string
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
