package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Cardeon/internal/api/gemini"
	"github.com/Alias1177/Cardeon/internal/api/openai"
	platformhttp "github.com/Alias1177/Cardeon/internal/platform/http"
	"github.com/Alias1177/Cardeon/models"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ErrUnknownProvider is returned by NewGenerator for an unsupported provider name.
var ErrUnknownProvider = errors.New("unknown inference provider")

// Client sends one assessment request and returns a validated result.
type Client struct {
	generator models.Generator
	logger    zerolog.Logger
}

// NewClient creates a new inference client on top of a backend.
func NewClient(generator models.Generator) *Client {
	return &Client{
		generator: generator,
		logger:    log.With().Str("component", "inference_client").Str("backend", generator.Name()).Logger(),
	}
}

// Predict performs a single exchange with the backend. Any error it returns
// is a *TransportError or a *ContractViolation.
func (c *Client) Predict(ctx context.Context, req models.InferenceRequest) (result *models.PredictionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("Recovered panic in inference backend")
			result = nil
			err = &TransportError{Backend: c.generator.Name(), Err: fmt.Errorf("backend panic: %v", r)}
		}
	}()

	raw, err := c.generator.Generate(ctx, req)
	if err != nil {
		return nil, &TransportError{Backend: c.generator.Name(), Err: err}
	}

	result, err = ParseResult(raw)
	if err != nil {
		c.logger.Debug().Str("raw", raw).Err(err).Msg("Rejected inference response")
		return nil, err
	}

	c.logger.Debug().
		Str("risk_category", string(result.RiskCategory)).
		Float64("probability", result.Probability).
		Msg("Inference response accepted")
	return result, nil
}

// NewGenerator builds the backend selected by cfg.InferenceProvider.
func NewGenerator(cfg *models.Config, transport *platformhttp.Client) (models.Generator, error) {
	switch cfg.InferenceProvider {
	case ProviderGemini, "":
		return gemini.NewClient(transport, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEndpoint), nil
	case ProviderOpenAI:
		return openai.NewClient(transport, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.InferenceProvider)
	}
}

// NewTransport builds the shared rate-limited HTTP transport from cfg.
func NewTransport(cfg *models.Config) *platformhttp.Client {
	return platformhttp.NewClient(platformhttp.ClientOptions{
		Timeout:         cfg.Timeout(),
		RequestsPerSec:  cfg.RequestsPerSec,
		MaxRetries:      cfg.MaxRetries,
		MaxRetryTimeout: cfg.Timeout(),
	})
}
