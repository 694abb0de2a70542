package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"assemblydigest/internal/ratelimiter"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	DefaultModel = openai.ChatModelGPT5Mini2025_08_07

	baseMaxOutputTokens  int64 = 1024
	limitMaxOutputTokens int64 = 8192

	// RateLimiterKey is the limiter key every model request waits on.
	RateLimiterKey = "model"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Limiter paces requests across every concurrent caller. Optional.
	Limiter *ratelimiter.Limiter
}

// OpenAIClient calls OpenAI's Responses API.
type OpenAIClient struct {
	client  openai.Client
	model   string
	limiter *ratelimiter.Limiter
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries are owned by Retrying.
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		model:   model,
		limiter: cfg.Limiter,
	}, nil
}

func (c *OpenAIClient) Extract(ctx context.Context, contract Contract) (string, error) {
	user := strings.TrimSpace(contract.User)
	if user == "" {
		return "", errors.New("user prompt is empty")
	}

	params := responses.ResponseNewParams{
		Model: c.model,
		Reasoning: responses.ReasoningParam{
			Effort: openai.ReasoningEffortLow,
		},
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(user),
		},
	}
	if system := strings.TrimSpace(contract.System); system != "" {
		params.Instructions = openai.String(system)
	}
	if contract.Schema != nil {
		format := responses.ResponseFormatTextConfigParamOfJSONSchema(
			contract.Schema.Name,
			contract.Schema.Definition,
		)
		if format.OfJSONSchema != nil {
			format.OfJSONSchema.Strict = openai.Bool(contract.Schema.Strict)
		}
		params.Text = responses.ResponseTextConfigParam{Format: format}
	}

	maxOutputTokens := baseMaxOutputTokens
	for {
		if err := c.limiter.Wait(ctx, RateLimiterKey); err != nil {
			return "", fmt.Errorf("wait for rate limiter: %w", err)
		}

		params.MaxOutputTokens = openai.Int(maxOutputTokens)

		resp, err := c.client.Responses.New(ctx, params)
		if err != nil {
			var apiErr *openai.Error
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
				return "", fmt.Errorf("do request: %w: %w", ErrRateLimited, err)
			}

			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		output := strings.TrimSpace(resp.OutputText())
		if output == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}
		return output, nil
	}
}
