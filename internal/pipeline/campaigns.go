package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"adflow/internal/aggregate"
	"adflow/internal/claim"
	"adflow/internal/dispatch"
	"adflow/internal/domain"
	"adflow/internal/providers/meta"
)

// NewAd is one ad of a new campaign.
type NewAd struct {
	Name        string
	ImageURL    string
	PrimaryText string
	Headline    string
	LinkURL     string
}

// NewCampaign is the intake payload of a campaign.
type NewCampaign struct {
	Name             string
	Objective        string
	DailyBudgetCents int64
	TemplateAdSetID  string
	Ads              []NewAd
}

// CreateCampaign stores a draft campaign with pending ads.
func (s *Service) CreateCampaign(ctx context.Context, in NewCampaign) (*domain.Campaign, []domain.Ad, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, nil, fmt.Errorf("%w: campaign name is required", domain.ErrInvalidInput)
	}
	if in.TemplateAdSetID == "" && in.DailyBudgetCents <= 0 {
		return nil, nil, fmt.Errorf("%w: daily budget is required without a template ad set", domain.ErrInvalidInput)
	}
	c := &domain.Campaign{
		Name:             strings.TrimSpace(in.Name),
		Objective:        in.Objective,
		DailyBudgetCents: in.DailyBudgetCents,
		TemplateAdSetID:  in.TemplateAdSetID,
		Status:           domain.StatusDraft,
	}
	ads := make([]domain.Ad, 0, len(in.Ads))
	for i, a := range in.Ads {
		if strings.TrimSpace(a.ImageURL) == "" || strings.TrimSpace(a.LinkURL) == "" {
			return nil, nil, fmt.Errorf("%w: ad %d needs an image and a link", domain.ErrInvalidInput, i)
		}
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = fmt.Sprintf("%s #%02d", c.Name, i+1)
		}
		ads = append(ads, domain.Ad{
			Name:        name,
			ImageURL:    a.ImageURL,
			PrimaryText: a.PrimaryText,
			Headline:    a.Headline,
			LinkURL:     a.LinkURL,
			Status:      domain.StatusPending,
		})
	}
	if err := s.Campaigns.CreateCampaign(ctx, c, ads); err != nil {
		return nil, nil, fmt.Errorf("create campaign: %w", err)
	}
	return c, ads, nil
}

// GetCampaign loads a campaign with its ads in intake order.
func (s *Service) GetCampaign(ctx context.Context, id string) (*domain.Campaign, []domain.Ad, error) {
	c, err := s.Campaigns.GetCampaign(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ads, err := s.Campaigns.ListAds(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return c, ads, nil
}

// AdResult is the outcome of pushing one ad.
type AdResult struct {
	AdID   string
	Status domain.Status
	Error  string
}

// PushReport summarizes a campaign push.
type PushReport struct {
	Campaign *domain.Campaign
	Ads      []AdResult
}

// PushCampaign creates the platform campaign and ad set, then pushes every
// ad that is not yet live with bounded concurrency. The campaign ends pushed
// when at least one ad is live (or it has none) and in error otherwise.
func (s *Service) PushCampaign(ctx context.Context, id string) (*PushReport, error) {
	c, err := s.Campaigns.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Ads == nil {
		return nil, fmt.Errorf("%w: ad platform is not configured", domain.ErrUpstream)
	}
	ticket, err := s.Claims.Acquire(ctx, claim.Request{
		Entity:     domain.EntityCampaign,
		ID:         id,
		From:       []domain.Status{domain.StatusDraft, domain.StatusError},
		To:         domain.StatusPushing,
		StaleAfter: s.settings.StaleAfter,
	})
	if err != nil {
		return nil, err
	}

	report := &PushReport{}
	log := s.logger.With().Str("campaign_id", id).Logger()
	out, err := s.Claims.Run(ctx, ticket, func(ctx context.Context) (claim.Outcome, error) {
		adSetID, err := s.ensurePlatformCampaign(ctx, c)
		if err != nil {
			return claim.Outcome{Status: domain.StatusError, Message: err.Error()}, nil
		}
		ads, err := s.Campaigns.ListAds(ctx, id)
		if err != nil {
			return claim.Outcome{}, err
		}
		var todo []domain.Ad
		for _, ad := range ads {
			if ad.Status != domain.StatusPushed {
				todo = append(todo, ad)
			}
		}
		outcomes := dispatch.RunBounded(ctx, todo, s.settings.PushConcurrency, func(ctx context.Context, ad domain.Ad) (domain.Status, error) {
			return s.pushAd(ctx, ad, adSetID)
		})
		for _, o := range outcomes {
			r := AdResult{AdID: o.Item.ID, Status: o.Result}
			if o.Err != nil {
				r.Error = o.Err.Error()
				if r.Status == "" {
					r.Status = domain.StatusError
				}
			}
			report.Ads = append(report.Ads, r)
		}
		succeeded, failed := dispatch.Counts(outcomes)
		log.Info().Int("pushed", succeeded).Int("failed", failed).Bool("batch_ok", dispatch.BatchSucceeded(outcomes)).Msg("pipeline: ads dispatched")

		ads, err = s.Campaigns.ListAds(ctx, id)
		if err != nil {
			return claim.Outcome{}, err
		}
		statuses := make([]domain.Status, len(ads))
		for i, ad := range ads {
			statuses[i] = ad.Status
		}
		next, ready := aggregate.Recompute(aggregate.CampaignPush, statuses)
		if !ready {
			return claim.Outcome{Status: domain.StatusError, Message: "some ads are still being uploaded"}, nil
		}
		if next == domain.StatusError {
			return claim.Outcome{Status: next, Message: fmt.Sprintf("all %d ads failed", len(ads))}, nil
		}
		return claim.Succeeded(next), nil
	})
	log.Info().Str("status", string(out.Status)).Str("message", out.Message).Msg("pipeline: campaign push finished")
	if err != nil {
		return nil, err
	}
	report.Campaign, err = s.Campaigns.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ensurePlatformCampaign creates the platform campaign and ad set once; a
// retried push reuses them.
func (s *Service) ensurePlatformCampaign(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.PlatformCampaignID != "" && c.PlatformAdSetID != "" {
		return c.PlatformAdSetID, nil
	}
	campaignID := c.PlatformCampaignID
	if campaignID == "" {
		id, err := s.Ads.CreateCampaign(ctx, meta.CampaignSpec{Name: c.Name, Objective: c.Objective})
		if err != nil {
			return "", fmt.Errorf("create campaign: %w", err)
		}
		campaignID = id
	}
	var (
		adSetID string
		err     error
	)
	if c.TemplateAdSetID != "" {
		adSetID, err = s.Ads.DuplicateAdSet(ctx, c.TemplateAdSetID, campaignID)
	} else {
		adSetID, err = s.Ads.CreateAdSet(ctx, meta.AdSetSpec{CampaignID: campaignID, Name: c.Name, DailyBudgetCents: c.DailyBudgetCents})
	}
	if err != nil {
		// Keep the campaign id so a retry does not create a second one.
		_ = s.Campaigns.SetPlatformIDs(ctx, c.ID, campaignID, "")
		return "", fmt.Errorf("create ad set: %w", err)
	}
	if err := s.Campaigns.SetPlatformIDs(ctx, c.ID, campaignID, adSetID); err != nil {
		return "", err
	}
	return adSetID, nil
}

func (s *Service) pushAd(ctx context.Context, ad domain.Ad, adSetID string) (domain.Status, error) {
	ticket, err := s.Claims.Acquire(ctx, claim.Request{
		Entity:     domain.EntityAd,
		ID:         ad.ID,
		From:       []domain.Status{domain.StatusPending, domain.StatusError},
		To:         domain.StatusUploading,
		StaleAfter: s.settings.StaleAfter,
	})
	if err != nil {
		return "", err
	}
	out, err := s.Claims.Run(ctx, ticket, func(ctx context.Context) (claim.Outcome, error) {
		if s.Downloads == nil {
			return claim.Outcome{}, errors.New("image downloads are not configured")
		}
		data, _, err := s.Downloads.Download(ctx, ad.ImageURL)
		if err != nil {
			return claim.Outcome{}, fmt.Errorf("fetch image: %w", err)
		}
		hash, err := s.Ads.UploadImage(ctx, imageFilename(ad), data)
		if err != nil {
			return claim.Outcome{}, fmt.Errorf("upload image: %w", err)
		}
		creativeID, err := s.Ads.CreateCreative(ctx, meta.CreativeSpec{
			Name:        ad.Name,
			ImageHash:   hash,
			PrimaryText: ad.PrimaryText,
			Headline:    ad.Headline,
			LinkURL:     ad.LinkURL,
		})
		if err != nil {
			return claim.Outcome{}, fmt.Errorf("create creative: %w", err)
		}
		platformAdID, err := s.Ads.CreateAd(ctx, meta.AdSpec{Name: ad.Name, AdSetID: adSetID, CreativeID: creativeID})
		if err != nil {
			return claim.Outcome{}, fmt.Errorf("create ad: %w", err)
		}
		if err := s.Campaigns.SetAdResult(ctx, ad.ID, hash, platformAdID); err != nil {
			return claim.Outcome{}, err
		}
		return claim.Succeeded(domain.StatusPushed), nil
	})
	return out.Status, err
}

func imageFilename(ad domain.Ad) string {
	name := path.Base(strings.SplitN(ad.ImageURL, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		return ad.ID + ".png"
	}
	return name
}
