// Package enrichment generates short and detailed launch descriptions through
// an OpenAI-compatible chat-completion API. Enrichment degrades gracefully: a
// completion that fails to parse still yields a usable description, and every
// failure affects only the single launch being enriched.
package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/launchfeed/launchfeed/internal/models"
)

// Error taxonomy for enrichment calls. Unauthorized and rate-limited are
// distinguished so the orchestrator can log them differently; everything else
// carries the provider status code.
var (
	ErrUnauthorized = errors.New("enrichment: unauthorized")
	ErrRateLimited  = errors.New("enrichment: rate limited")
)

// ServerError is a non-2xx completion response other than 401/429.
type ServerError struct {
	Code int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("enrichment: server error %d", e.Code)
}

// Enricher resolves AI-generated descriptions for a single launch.
type Enricher interface {
	Enrich(ctx context.Context, launch models.Launch) (models.Enrichment, error)
}

// Config holds the completion API settings.
type Config struct {
	APIKey      string
	BaseURL     string // empty means the default OpenAI endpoint
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultConfig returns settings tuned for short factual copywriting.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		Temperature: 0.4,
		MaxTokens:   600,
		Timeout:     30 * time.Second,
	}
}

// Client is the OpenAI-backed Enricher.
type Client struct {
	client  *openai.Client
	config  Config
	prompts *PromptTemplates
	logger  *slog.Logger
}

// NewClient creates an enrichment client. The API key is treated as an opaque
// bearer credential; it is never validated here.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  cfg,
		prompts: NewPromptTemplates(),
		logger:  logger,
	}
}

// Enrich builds the fixed-shape prompt from launch fields and requests a
// structured description pair. A completion that cannot be parsed falls back
// to using the raw text as the detailed description.
func (c *Client) Enrich(ctx context.Context, launch models.Launch) (models.Enrichment, error) {
	apiCtx := ctx
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		apiCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(apiCtx, openai.ChatCompletionRequest{
		Model:               c.config.Model,
		Temperature:         c.config.Temperature,
		MaxCompletionTokens: c.config.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.prompts.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: c.prompts.BuildLaunchPrompt(launch)},
		},
	})
	if err != nil {
		return models.Enrichment{}, mapAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return models.Enrichment{}, fmt.Errorf("enrichment: no completion choices from model %s", c.config.Model)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return models.Enrichment{}, fmt.Errorf("enrichment: empty completion (finish_reason: %s)", resp.Choices[0].FinishReason)
	}

	e, parseErr := parseCompletion(content)
	if parseErr != nil {
		c.logger.Warn("enrichment completion did not parse, degrading to raw text",
			"launch_id", launch.ID,
			"error", parseErr)
		return fallbackEnrichment(launch, content), nil
	}
	return e, nil
}

func mapAPIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return fmt.Errorf("enrichment: completion call failed: %w", err)
	}

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	default:
		return fmt.Errorf("%w: %v", &ServerError{Code: status}, err)
	}
}

// completionPayload is the structured format the prompt asks for.
type completionPayload struct {
	ShortDescription    string `json:"shortDescription"`
	DetailedDescription string `json:"detailedDescription"`
	Status              string `json:"status,omitempty"`
}

func parseCompletion(content string) (models.Enrichment, error) {
	// Models occasionally wrap JSON in a markdown fence despite instructions.
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var payload completionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return models.Enrichment{}, err
	}
	if payload.ShortDescription == "" && payload.DetailedDescription == "" {
		return models.Enrichment{}, fmt.Errorf("completion carried no descriptions")
	}

	e := models.Enrichment{
		ShortDescription:    payload.ShortDescription,
		DetailedDescription: payload.DetailedDescription,
	}
	if payload.Status != "" {
		if status := models.ParseStatus(payload.Status); status != models.StatusUnknown {
			e.Status = &status
		}
	}
	return e, nil
}

// fallbackEnrichment builds a degraded enrichment from an unparsable
// completion: the raw text becomes the detailed description and the short
// description is templated from launch fields.
func fallbackEnrichment(launch models.Launch, raw string) models.Enrichment {
	return models.Enrichment{
		ShortDescription:    fmt.Sprintf("%s launching %s from %s.", launch.ProviderName, launch.RocketName, launch.LocationName),
		DetailedDescription: raw,
	}
}
