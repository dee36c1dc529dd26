package domain

// Entity names a persisted work entity whose status is guarded by claims.
type Entity string

const (
	EntityImageJob         Entity = "image_job"
	EntitySourceImage      Entity = "source_image"
	EntityImageTranslation Entity = "image_translation"
	EntityTranslation      Entity = "translation"
	EntityABTest           Entity = "ab_test"
	EntityCampaign         Entity = "meta_campaign"
	EntityAd               Entity = "meta_ad"
)

// Status is the stored lifecycle value of an entity. The legal subset per
// entity lives in the ledger package.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusExpanding   Status = "expanding"
	StatusReady       Status = "ready"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusPending     Status = "pending"
	StatusTranslating Status = "translating"
	StatusTranslated  Status = "translated"
	StatusPublishing  Status = "publishing"
	StatusPublished   Status = "published"
	StatusError       Status = "error"
	StatusActive      Status = "active"
	StatusPushing     Status = "pushing"
	StatusPushed      Status = "pushed"
	StatusUploading   Status = "uploading"
)

// Statuses converts a status list to plain strings for SQL array binding.
func Statuses(list ...Status) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = string(s)
	}
	return out
}
