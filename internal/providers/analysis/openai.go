// Package analysis wraps the LLM service that translates page content and
// scores candidate translations.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"adflow/internal/domain"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("analysis: api key is required")

const defaultModel = "gpt-4o-mini"

// Options configures the client.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Request is one quality analysis of a candidate translation.
type Request struct {
	Original  string
	Candidate string
	Language  string
	// PriorCorrections were already applied; the service should not suggest
	// them again.
	PriorCorrections []domain.Correction
}

// Client calls a chat-completions compatible endpoint.
type Client struct {
	apiKey string
	model  string
	client openai.Client
}

// NewClient constructs a client with defaults applied.
func NewClient(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &Client{
		apiKey: strings.TrimSpace(opts.APIKey),
		model:  opts.Model,
		client: openai.NewClient(reqOpts...),
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Translate renders markup into language, preserving tags and attributes.
func (c *Client) Translate(ctx context.Context, content, language string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", errors.New("analysis: content is required")
	}
	system := "You translate marketing landing pages. Translate all human-visible text into the target language " +
		"and return only the resulting markup. Keep every tag, attribute, URL and placeholder unchanged."
	user := fmt.Sprintf("Target language: %s\n\n%s", language, content)
	out, err := c.complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	return stripFences(out), nil
}

// Analyze scores req.Candidate and returns suggested corrections.
func (c *Client) Analyze(ctx context.Context, req Request) (domain.QualityAnalysis, error) {
	if strings.TrimSpace(req.Candidate) == "" {
		return domain.QualityAnalysis{}, errors.New("analysis: candidate is required")
	}
	user := buildAnalysisPrompt(req)
	out, err := c.complete(ctx, analysisSystemPrompt, user)
	if err != nil {
		return domain.QualityAnalysis{}, err
	}
	return parseAnalysis(out)
}

const analysisSystemPrompt = `You review translations of marketing content. Respond with JSON only:
{"score": <0-100>, "issues": [{"severity": "low|medium|high", "message": "..."}],
 "suggested_corrections": [{"find": "<exact text in the translation>", "replace": "<fixed text>"}]}
Every "find" must be copied verbatim from the translation.`

func buildAnalysisPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target language: %s\n\nOriginal:\n%s\n\nTranslation:\n%s\n", req.Language, req.Original, req.Candidate)
	if len(req.PriorCorrections) > 0 {
		b.WriteString("\nAlready applied corrections (do not suggest again):\n")
		for _, pc := range req.PriorCorrections {
			fmt.Fprintf(&b, "- %q -> %q\n", pc.Find, pc.Replace)
		}
	}
	return b.String()
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("analysis: empty response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("analysis: empty response")
	}
	return text, nil
}

type analysisPayload struct {
	Score                json.Number           `json:"score"`
	Issues               []domain.QualityIssue `json:"issues"`
	SuggestedCorrections []domain.Correction   `json:"suggested_corrections"`
}

func parseAnalysis(raw string) (domain.QualityAnalysis, error) {
	raw = stripFences(raw)
	if i, j := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); i >= 0 && j > i {
		raw = raw[i : j+1]
	}
	var payload analysisPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.QualityAnalysis{}, fmt.Errorf("analysis: decode response: %w", err)
	}
	score, err := payload.Score.Float64()
	if err != nil {
		return domain.QualityAnalysis{}, fmt.Errorf("analysis: invalid score %q", payload.Score)
	}
	corrections := payload.SuggestedCorrections[:0:0]
	for _, c := range payload.SuggestedCorrections {
		if c.Find != "" && c.Find != c.Replace {
			corrections = append(corrections, c)
		}
	}
	return domain.QualityAnalysis{
		Score:                int(score + 0.5),
		RawScore:             int(score + 0.5),
		Issues:               payload.Issues,
		SuggestedCorrections: corrections,
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("analysis: %w (status %d): %s", domain.ErrUpstream, apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("analysis: %w (status %d)", domain.ErrUpstream, apiErr.StatusCode)
	}
	return fmt.Errorf("analysis: %w: %v", domain.ErrUpstream, err)
}
