package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/inkwell/internal/config"
	"github.com/phrazzld/inkwell/internal/generation"
	"github.com/phrazzld/inkwell/internal/platform/logger"
	"google.golang.org/genai"
)

// Generator implements generation.Generator using the Gemini API.
type Generator struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates a Gemini generator from the LLM configuration.
// cfg.GeminiBaseURL, when set, overrides the API endpoint.
func NewGenerator(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (*Generator, error) {
	if log == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	model := cfg.GeminiModel
	if model == "" {
		model = generation.DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.GeminiBaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gemini client: %v", generation.ErrInvalidConfig, err)
	}

	log.InfoContext(ctx, "gemini generator initialized", slog.String("model", model))

	return &Generator{
		client: client,
		model:  model,
		logger: log.With(slog.String("component", "gemini_generator")),
	}, nil
}

// Generate implements generation.Generator.
func (g *Generator) Generate(ctx context.Context, req generation.Request) (string, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	model := req.Model
	if model == "" {
		model = g.model
	}

	log.DebugContext(ctx, "calling gemini",
		slog.String("model", model),
		slog.String("content_type", string(req.ContentType)))

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(generation.SinglePrompt(req)), nil)
	if err != nil {
		mapped := mapAPIError(err)
		log.WarnContext(ctx, "gemini call failed", slog.String("model", model), slog.Any("error", err))
		return "", mapped
	}

	text, err := extractText(resp)
	if err != nil {
		log.WarnContext(ctx, "gemini returned no usable content",
			slog.String("model", model), slog.Any("error", err))
		return "", err
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: candidate blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content", generation.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty text", generation.ErrInvalidResponse)
	}
	return text, nil
}

func mapAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: gemini rejected credentials (%d)", generation.ErrInvalidConfig, code)
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: gemini returned %d", generation.ErrTransientFailure, code)
	case code != 0:
		return fmt.Errorf("%w: gemini returned %d", generation.ErrGenerationFailed, code)
	default:
		return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}
}
