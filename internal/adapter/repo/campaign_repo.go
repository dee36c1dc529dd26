package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"adflow/internal/domain"
	"adflow/internal/sqlinline"
)

// CreateCampaign inserts the campaign and its ads in one statement.
func (s *Store) CreateCampaign(ctx context.Context, c *domain.Campaign, ads []domain.Ad) error {
	n := len(ads)
	names, images, texts, headlines, links := make([]string, n), make([]string, n), make([]string, n), make([]string, n), make([]string, n)
	for i, ad := range ads {
		names[i] = ad.Name
		images[i] = ad.ImageURL
		texts[i] = ad.PrimaryText
		headlines[i] = ad.Headline
		links[i] = ad.LinkURL
	}
	var (
		id        string
		createdAt time.Time
		adIDs     []string
	)
	err := s.db.QueryRow(ctx, sqlinline.QInsertCampaign,
		c.Name,
		c.Objective,
		c.DailyBudgetCents,
		c.TemplateAdSetID,
		string(c.Status),
		string(domain.StatusPending),
		names, images, texts, headlines, links,
	).Scan(&id, &createdAt, &adIDs)
	if err != nil {
		return mapErr(err)
	}
	if len(adIDs) != n {
		return fmt.Errorf("repo: inserted %d ads, want %d", len(adIDs), n)
	}
	c.ID, c.CreatedAt, c.UpdatedAt = id, createdAt, createdAt
	for i := range ads {
		ads[i].ID = adIDs[i]
		ads[i].CampaignID = id
		ads[i].Status = domain.StatusPending
		ads[i].CreatedAt, ads[i].UpdatedAt = createdAt, createdAt
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	var (
		c      domain.Campaign
		status string
	)
	err := s.db.QueryRow(ctx, sqlinline.QSelectCampaign, id).Scan(
		&c.ID,
		&c.Name,
		&c.Objective,
		&c.DailyBudgetCents,
		&c.TemplateAdSetID,
		&c.PlatformCampaignID,
		&c.PlatformAdSetID,
		&status,
		&c.ErrorMessage,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	c.Status = domain.Status(status)
	return &c, nil
}

func scanAd(row pgx.Row) (domain.Ad, error) {
	var (
		ad     domain.Ad
		status string
	)
	err := row.Scan(
		&ad.ID,
		&ad.CampaignID,
		&ad.Name,
		&ad.ImageURL,
		&ad.PrimaryText,
		&ad.Headline,
		&ad.LinkURL,
		&ad.ImageHash,
		&ad.PlatformAdID,
		&status,
		&ad.ErrorMessage,
		&ad.CreatedAt,
		&ad.UpdatedAt,
	)
	ad.Status = domain.Status(status)
	return ad, err
}

func (s *Store) ListAds(ctx context.Context, campaignID string) ([]domain.Ad, error) {
	rows, err := s.db.Query(ctx, sqlinline.QListAds, campaignID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []domain.Ad
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ad)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) GetAd(ctx context.Context, id string) (*domain.Ad, error) {
	ad, err := scanAd(s.db.QueryRow(ctx, sqlinline.QSelectAd, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &ad, nil
}

func (s *Store) SetPlatformIDs(ctx context.Context, id, platformCampaignID, platformAdSetID string) error {
	return requireRow(s.db.Exec(ctx, sqlinline.QUpdateCampaignPlatformIDs, id, platformCampaignID, platformAdSetID))
}

func (s *Store) SetAdResult(ctx context.Context, id, imageHash, platformAdID string) error {
	return requireRow(s.db.Exec(ctx, sqlinline.QUpdateAdResult, id, imageHash, platformAdID))
}
