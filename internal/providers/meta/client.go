// Package meta is a narrow client for the Meta Marketing (Graph) API: the
// calls needed to push a campaign, its ad set and one ad per creative.
package meta

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"adflow/internal/infra"
)

// ErrMissingCredentials indicates that the client lacks a token or ad account.
var ErrMissingCredentials = errors.New("meta: access token and ad account are required")

// Options configures the Graph API client.
type Options struct {
	AccessToken string
	AdAccountID string
	PageID      string
	BaseURL     string
	HTTPClient  *http.Client
	Logger      *infra.Logger
	// Attempts bounds transport retries of one call, including the first.
	Attempts   uint
	RetryDelay time.Duration
}

// Client performs Graph API calls. Each call is independently retried on
// throttling and server errors.
type Client struct {
	token      string
	account    string
	pageID     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	attempts   uint
	delay      time.Duration
}

// APIError is a Graph API error response.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meta: %s (status %d, code %d)", e.Message, e.StatusCode, e.Code)
}

// Temporary reports whether the call may succeed when repeated.
func (e *APIError) Temporary() bool {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 {
		return true
	}
	switch e.Code {
	case 1, 2, 4, 17, 32, 613:
		return true
	}
	return false
}

// CampaignSpec describes a new campaign.
type CampaignSpec struct {
	Name      string
	Objective string
}

// AdSetSpec describes a new ad set.
type AdSetSpec struct {
	CampaignID       string
	Name             string
	DailyBudgetCents int64
}

// CreativeSpec describes a link-ad creative.
type CreativeSpec struct {
	Name        string
	ImageHash   string
	PrimaryText string
	Headline    string
	LinkURL     string
}

// AdSpec describes an ad binding a creative to an ad set.
type AdSpec struct {
	Name       string
	AdSetID    string
	CreativeID string
}

// NewClient constructs a client with defaults applied.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://graph.facebook.com/v21.0"
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	attempts := opts.Attempts
	if attempts == 0 {
		attempts = 3
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	account := strings.TrimSpace(opts.AdAccountID)
	if account != "" && !strings.HasPrefix(account, "act_") {
		account = "act_" + account
	}
	return &Client{
		token:      strings.TrimSpace(opts.AccessToken),
		account:    account,
		pageID:     strings.TrimSpace(opts.PageID),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		attempts:   attempts,
		delay:      delay,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.token != "" && c.account != ""
}

// CreateCampaign creates a paused campaign and returns its id.
func (c *Client) CreateCampaign(ctx context.Context, spec CampaignSpec) (string, error) {
	objective := spec.Objective
	if objective == "" {
		objective = "OUTCOME_TRAFFIC"
	}
	form := url.Values{
		"name":                  {spec.Name},
		"objective":             {objective},
		"status":                {"PAUSED"},
		"special_ad_categories": {"[]"},
	}
	return c.createID(ctx, c.account+"/campaigns", form)
}

// CreateAdSet creates a paused ad set under a campaign.
func (c *Client) CreateAdSet(ctx context.Context, spec AdSetSpec) (string, error) {
	form := url.Values{
		"name":              {spec.Name},
		"campaign_id":       {spec.CampaignID},
		"daily_budget":      {fmt.Sprintf("%d", spec.DailyBudgetCents)},
		"billing_event":     {"IMPRESSIONS"},
		"optimization_goal": {"LINK_CLICKS"},
		"status":            {"PAUSED"},
	}
	return c.createID(ctx, c.account+"/adsets", form)
}

// DuplicateAdSet copies a template ad set into campaignID.
func (c *Client) DuplicateAdSet(ctx context.Context, templateID, campaignID string) (string, error) {
	form := url.Values{
		"campaign_id":   {campaignID},
		"deep_copy":     {"false"},
		"status_option": {"PAUSED"},
	}
	var out struct {
		CopiedAdSetID string `json:"copied_adset_id"`
	}
	if err := c.post(ctx, templateID+"/copies", form, &out); err != nil {
		return "", err
	}
	if out.CopiedAdSetID == "" {
		return "", errors.New("meta: copy returned no ad set id")
	}
	return out.CopiedAdSetID, nil
}

// UploadImage uploads image bytes and returns the image hash.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("meta: image is empty")
	}
	form := url.Values{
		"filename": {filename},
		"bytes":    {base64.StdEncoding.EncodeToString(data)},
	}
	var out struct {
		Images map[string]struct {
			Hash string `json:"hash"`
		} `json:"images"`
	}
	if err := c.post(ctx, c.account+"/adimages", form, &out); err != nil {
		return "", err
	}
	for _, img := range out.Images {
		if img.Hash != "" {
			return img.Hash, nil
		}
	}
	return "", errors.New("meta: upload returned no image hash")
}

// CreateCreative creates a link-ad creative for the configured page.
func (c *Client) CreateCreative(ctx context.Context, spec CreativeSpec) (string, error) {
	story := map[string]any{
		"page_id": c.pageID,
		"link_data": map[string]any{
			"image_hash": spec.ImageHash,
			"link":       spec.LinkURL,
			"message":    spec.PrimaryText,
			"name":       spec.Headline,
		},
	}
	raw, err := json.Marshal(story)
	if err != nil {
		return "", fmt.Errorf("meta: encode story spec: %w", err)
	}
	form := url.Values{
		"name":              {spec.Name},
		"object_story_spec": {string(raw)},
	}
	return c.createID(ctx, c.account+"/adcreatives", form)
}

// CreateAd creates a paused ad.
func (c *Client) CreateAd(ctx context.Context, spec AdSpec) (string, error) {
	creative, err := json.Marshal(map[string]string{"creative_id": spec.CreativeID})
	if err != nil {
		return "", fmt.Errorf("meta: encode creative: %w", err)
	}
	form := url.Values{
		"name":     {spec.Name},
		"adset_id": {spec.AdSetID},
		"creative": {string(creative)},
		"status":   {"PAUSED"},
	}
	return c.createID(ctx, c.account+"/ads", form)
}

func (c *Client) createID(ctx context.Context, path string, form url.Values) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, path, form, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("meta: %s returned no id", path)
	}
	return out.ID, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	if !c.HasCredentials() {
		return ErrMissingCredentials
	}
	form.Set("access_token", c.token)
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	body := form.Encode()

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("meta: build request: %w", err))
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return c.do(req, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTemporary),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn().Err(err).Uint("attempt", n+1).Str("path", path).Msg("meta: retrying call")
		}),
	)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("meta: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("meta: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var env struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(raw, &env) == nil && env.Error != nil {
			env.Error.StatusCode = resp.StatusCode
			return env.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("meta: decode response: %w", err)
	}
	return nil
}

func isTemporary(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	// Transport errors are retried.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
