package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"adflow/internal/pipeline"
)

type newAdRequest struct {
	Name        string `json:"name"`
	ImageURL    string `json:"image_url"`
	PrimaryText string `json:"primary_text"`
	Headline    string `json:"headline"`
	LinkURL     string `json:"link_url"`
}

type createCampaignRequest struct {
	Name             string         `json:"name"`
	Objective        string         `json:"objective"`
	DailyBudgetCents int64          `json:"daily_budget_cents"`
	TemplateAdSetID  string         `json:"template_ad_set_id"`
	Ads              []newAdRequest `json:"ads"`
}

type campaignResponse struct {
	Campaign campaignView `json:"campaign"`
	Ads      []adView     `json:"ads"`
}

type adResultView struct {
	AdID   string `json:"ad_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (a *App) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !a.decode(w, r, &req) {
		return
	}
	ads := make([]pipeline.NewAd, len(req.Ads))
	for i, ad := range req.Ads {
		ads[i] = pipeline.NewAd(ad)
	}
	c, created, err := a.Service.CreateCampaign(r.Context(), pipeline.NewCampaign{
		Name:             req.Name,
		Objective:        req.Objective,
		DailyBudgetCents: req.DailyBudgetCents,
		TemplateAdSetID:  req.TemplateAdSetID,
		Ads:              ads,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, campaignResponse{Campaign: newCampaignView(c), Ads: adViews(created)})
}

func (a *App) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, ads, err := a.Service.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, campaignResponse{Campaign: newCampaignView(c), Ads: adViews(ads)})
}

func (a *App) PushCampaign(w http.ResponseWriter, r *http.Request) {
	report, err := a.Service.PushCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	results := make([]adResultView, len(report.Ads))
	for i, res := range report.Ads {
		results[i] = adResultView{AdID: res.AdID, Status: string(res.Status), Error: res.Error}
	}
	a.json(w, http.StatusOK, map[string]any{
		"campaign": newCampaignView(report.Campaign),
		"ads":      results,
	})
}
