package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/phrazzld/inkwell/internal/config"
	"github.com/phrazzld/inkwell/internal/generation"
	"github.com/phrazzld/inkwell/internal/platform/logger"
)

// finishContentFilter is the finish reason reported when moderation stops
// a completion.
const finishContentFilter = "content_filter"

// Generator implements generation.Generator using chat completions.
type Generator struct {
	client openaisdk.Client
	model  string
	logger *slog.Logger
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates an OpenAI generator. SDK retries are disabled; the
// job queue retries failed attempts.
func NewGenerator(cfg config.LLMConfig, log *slog.Logger) (*Generator, error) {
	if log == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithMaxRetries(0),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}

	model := cfg.OpenAIModel
	if model == "" {
		model = generation.DefaultOpenAIModel
	}

	return &Generator{
		client: openaisdk.NewClient(opts...),
		model:  model,
		logger: log.With(slog.String("component", "openai_generator")),
	}, nil
}

// Generate implements generation.Generator.
func (g *Generator) Generate(ctx context.Context, req generation.Request) (string, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	model := req.Model
	if model == "" {
		model = g.model
	}
	system, user := generation.ChatPrompts(req)

	log.DebugContext(ctx, "calling openai",
		slog.String("model", model),
		slog.String("content_type", string(req.ContentType)))

	resp, err := g.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(system),
			openaisdk.UserMessage(user),
		},
	})
	if err != nil {
		log.WarnContext(ctx, "openai call failed", slog.String("model", model), slog.Any("error", err))
		return "", mapAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", generation.ErrInvalidResponse)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == finishContentFilter {
		return "", fmt.Errorf("%w: completion stopped by content filter", generation.ErrContentBlocked)
	}
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("%w: model refused: %s", generation.ErrContentBlocked, choice.Message.Refusal)
	}

	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty message", generation.ErrInvalidResponse)
	}
	return text, nil
}

func mapAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	var apiErr *openaisdk.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	code := apiErr.StatusCode
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: openai rejected credentials (%d)", generation.ErrInvalidConfig, code)
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: openai returned %d", generation.ErrTransientFailure, code)
	default:
		return fmt.Errorf("%w: openai returned %d", generation.ErrGenerationFailed, code)
	}
}
