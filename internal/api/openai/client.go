package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	platformhttp "github.com/Alias1177/Cardeon/internal/platform/http"
	"github.com/Alias1177/Cardeon/models"
)

const DefaultModel = openai.GPT4oMini

// ErrEmptyResponse is returned when the completion carries no content.
var ErrEmptyResponse = errors.New("openai returned no content")

// Client wraps the OpenAI API client
type Client struct {
	client    *openai.Client
	transport *platformhttp.Client
	model     string
	logger    zerolog.Logger
}

// NewClient creates a new OpenAI client. An empty baseURL keeps the public API.
func NewClient(transport *platformhttp.Client, apiKey, model, baseURL string) *Client {
	if model == "" {
		model = DefaultModel
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	config.HTTPClient = transport.HTTPClient

	return &Client{
		client:    openai.NewClientWithConfig(config),
		transport: transport,
		model:     model,
		logger:    log.With().Str("component", "openai_client").Logger(),
	}
}

func (c *Client) Name() string {
	return "openai/" + c.model
}

// Generate sends the prompt with a strict json_schema response format and
// returns the completion content.
func (c *Client) Generate(ctx context.Context, req models.InferenceRequest) (string, error) {
	schema, err := json.Marshal(toJSONSchema(req.Schema))
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}

	request := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: json.RawMessage(schema),
				Strict: true,
			},
		},
	}

	c.logger.Debug().Str("model", c.model).Msg("Sending prediction request to OpenAI")

	var resp openai.ChatCompletionResponse
	err = c.transport.Retry(ctx, func(attempt int) error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, request)
		if callErr == nil {
			return nil
		}
		c.logger.Debug().Err(callErr).Int("attempt", attempt).Msg("OpenAI API error")
		if !retryable(callErr) {
			return backoff.Permanent(callErr)
		}
		return callErr
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("OpenAI API error")
		return "", err
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn().Msg("OpenAI returned empty choices")
		return "", ErrEmptyResponse
	}

	if refusal := resp.Choices[0].Message.Refusal; refusal != "" {
		return "", fmt.Errorf("openai refused the request: %s", refusal)
	}
	if resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}

func retryable(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		// network failures
		return true
	}
	return (&platformhttp.HTTPStatusError{StatusCode: status}).Retryable() || status == 0
}

// toJSONSchema renders the lower-case JSON Schema strict mode expects:
// every object closed and every property listed as required.
func toJSONSchema(s *models.Schema) map[string]any {
	if s == nil {
		return nil
	}

	out := map[string]any{"type": s.Type}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Items != nil {
		out["items"] = toJSONSchema(s.Items)
	}
	if s.Type == models.SchemaObject {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = toJSONSchema(prop)
		}
		out["properties"] = props
		out["required"] = s.Required
		out["additionalProperties"] = false
	}
	return out
}
