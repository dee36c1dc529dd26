// Package taskapi talks to the asynchronous image generation API: a task is
// submitted once and its state is polled until it finishes or the caller's
// wall-clock budget runs out.
package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"adflow/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("taskapi: api key is required")

const (
	DefaultPollInterval = 3 * time.Second
	DefaultMaxWait      = 280 * time.Second
)

// Options configures the generation API client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	// Now and Sleep are swapped in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client submits and polls generation tasks.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// TaskSpec is one unit of generation work.
type TaskSpec struct {
	Prompt      string
	SourceURLs  []string
	AspectRatio string
	Resolution  string
	// Model overrides the client default when set.
	Model string
}

// State is the provider-side state of a task.
type State string

const (
	StateWaiting State = "waiting"
	StateSuccess State = "success"
	StateFail    State = "fail"
)

// TaskStatus is one poll response.
type TaskStatus struct {
	State        State
	ResultURLs   []string
	ErrorMessage string
}

type createTaskRequest struct {
	Model string          `json:"model"`
	Input createTaskInput `json:"input"`
}

type createTaskInput struct {
	Prompt      string   `json:"prompt"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
	Resolution  string   `json:"resolution,omitempty"`
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type createTaskData struct {
	TaskID string `json:"taskId"`
}

type recordInfoData struct {
	TaskID     string `json:"taskId"`
	State      string `json:"state"`
	ResultJSON string `json:"resultJson"`
	FailCode   string `json:"failCode"`
	FailMsg    string `json:"failMsg"`
}

type resultPayload struct {
	ResultURLs []string `json:"resultUrls"`
}

// NewClient constructs a client with defaults applied.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.kie.ai/api/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "nano-banana-pro"
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
		now:        now,
		sleep:      sleep,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit creates a task and returns its identifier. It never retries.
func (c *Client) Submit(ctx context.Context, spec TaskSpec) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(spec.Prompt)
	if prompt == "" {
		return "", errors.New("taskapi: prompt is required")
	}
	model := strings.TrimSpace(spec.Model)
	if model == "" {
		model = c.model
	}
	payload := createTaskRequest{
		Model: model,
		Input: createTaskInput{
			Prompt:      prompt,
			ImageURLs:   spec.SourceURLs,
			AspectRatio: spec.AspectRatio,
			Resolution:  spec.Resolution,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("taskapi: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs/createTask", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("taskapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var data createTaskData
	if err := c.do(req, &data); err != nil {
		return "", err
	}
	if strings.TrimSpace(data.TaskID) == "" {
		return "", errors.New("taskapi: empty task id")
	}
	c.logger.Debug().Str("task_id", data.TaskID).Str("model", model).Str("aspect_ratio", spec.AspectRatio).Msg("taskapi: task submitted")
	return data.TaskID, nil
}

// Status fetches the current state of a task.
func (c *Client) Status(ctx context.Context, taskID string) (TaskStatus, error) {
	if !c.HasCredentials() {
		return TaskStatus{}, ErrMissingAPIKey
	}
	endpoint := c.baseURL + "/jobs/recordInfo?taskId=" + url.QueryEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return TaskStatus{}, fmt.Errorf("taskapi: build request: %w", err)
	}
	var data recordInfoData
	if err := c.do(req, &data); err != nil {
		return TaskStatus{}, err
	}
	status := TaskStatus{State: normalizeState(data.State)}
	switch status.State {
	case StateSuccess:
		if strings.TrimSpace(data.ResultJSON) != "" {
			var result resultPayload
			if err := json.Unmarshal([]byte(data.ResultJSON), &result); err != nil {
				return TaskStatus{}, fmt.Errorf("taskapi: decode result: %w", err)
			}
			status.ResultURLs = result.ResultURLs
		}
	case StateFail:
		status.ErrorMessage = strings.TrimSpace(data.FailMsg)
		if status.ErrorMessage == "" {
			status.ErrorMessage = "generation failed"
			if data.FailCode != "" {
				status.ErrorMessage += " (" + data.FailCode + ")"
			}
		}
	}
	return status, nil
}

// AwaitResult polls taskID every pollInterval until it is terminal or maxWait
// has elapsed. Every poll runs under a deadline of maxWait from the first
// poll, so a slow status request cannot overrun the budget. Transport errors
// while polling are logged and polling continues. A cancelled ctx is reported
// as a timeout.
func (c *Client) AwaitResult(ctx context.Context, taskID string, pollInterval, maxWait time.Duration) Result {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	pollCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	start := c.now()
	polls := 0
	for {
		polls++
		status, err := c.Status(pollCtx, taskID)
		switch {
		case err != nil && pollCtx.Err() != nil:
			return TimedOut{Elapsed: c.now().Sub(start), Polls: polls}
		case err != nil:
			if errors.Is(err, ErrMissingAPIKey) {
				return Failed{Reason: err.Error()}
			}
			c.logger.Warn().Err(err).Str("task_id", taskID).Int("poll", polls).Msg("taskapi: poll failed")
		case status.State == StateSuccess:
			if len(status.ResultURLs) == 0 {
				return Failed{Reason: "generation succeeded without result urls"}
			}
			return Success{URLs: status.ResultURLs, Elapsed: c.now().Sub(start)}
		case status.State == StateFail:
			return Failed{Reason: status.ErrorMessage}
		}

		elapsed := c.now().Sub(start)
		if elapsed+pollInterval > maxWait {
			return TimedOut{Elapsed: elapsed, Polls: polls}
		}
		if err := c.sleep(pollCtx, pollInterval); err != nil {
			return TimedOut{Elapsed: c.now().Sub(start), Polls: polls}
		}
	}
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("taskapi: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("taskapi: read response: %w", err)
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode >= 300 {
		if decodeErr == nil && env.Msg != "" {
			return fmt.Errorf("taskapi: %s (%d)", env.Msg, resp.StatusCode)
		}
		return fmt.Errorf("taskapi: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil {
		return fmt.Errorf("taskapi: decode response: %w", decodeErr)
	}
	if env.Code != 0 && env.Code != http.StatusOK {
		return fmt.Errorf("taskapi: %s (%d)", env.Msg, env.Code)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return errors.New("taskapi: empty response data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("taskapi: decode data: %w", err)
	}
	return nil
}

func normalizeState(raw string) State {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "succeeded", "completed":
		return StateSuccess
	case "fail", "failed", "error":
		return StateFail
	default:
		return StateWaiting
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
