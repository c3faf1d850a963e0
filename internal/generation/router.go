package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/phrazzld/inkwell/internal/domain"
)

// Default models used when a request names none, or names one that does not
// belong to its provider.
const (
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultOpenAIModel = "gpt-3.5-turbo"
)

// modelPrefix is the required model name prefix per provider.
var modelPrefix = map[domain.Provider]string{
	domain.ProviderGemini: "gemini",
	domain.ProviderOpenAI: "gpt",
}

// Router dispatches requests to the generator registered for their
// provider, filling in the default provider and model.
type Router struct {
	defaultProvider domain.Provider
	byProvider      map[domain.Provider]Generator
	defaultModels   map[domain.Provider]string
}

var _ Generator = (*Router)(nil)

// NewRouter creates a router. defaultModels overrides the built-in default
// model per provider; entries not present fall back to the constants above.
func NewRouter(
	defaultProvider domain.Provider,
	byProvider map[domain.Provider]Generator,
	defaultModels map[domain.Provider]string,
) (*Router, error) {
	if byProvider[defaultProvider] == nil {
		return nil, fmt.Errorf("%w: default provider %q has no generator", ErrInvalidConfig, defaultProvider)
	}
	models := map[domain.Provider]string{
		domain.ProviderGemini: DefaultGeminiModel,
		domain.ProviderOpenAI: DefaultOpenAIModel,
	}
	for p, m := range defaultModels {
		if m = strings.TrimSpace(m); m != "" {
			models[p] = m
		}
	}
	return &Router{
		defaultProvider: defaultProvider,
		byProvider:      byProvider,
		defaultModels:   models,
	}, nil
}

// DefaultProvider returns the provider used when a request names none.
func (r *Router) DefaultProvider() domain.Provider {
	return r.defaultProvider
}

// Resolve returns the provider and model a request will actually use. An
// empty provider means the default; a model that does not carry the
// provider's prefix is replaced with the provider's default model.
func (r *Router) Resolve(provider domain.Provider, model string) (domain.Provider, string, error) {
	if provider == "" {
		provider = r.defaultProvider
	}
	if !provider.IsValid() {
		return "", "", domain.ErrInvalidProvider
	}
	if r.byProvider[provider] == nil {
		return "", "", fmt.Errorf("%w: provider %q is not configured", ErrInvalidConfig, provider)
	}

	model = strings.TrimSpace(model)
	if !strings.HasPrefix(strings.ToLower(model), modelPrefix[provider]) {
		model = r.defaultModels[provider]
	}
	return provider, model, nil
}

// Generate implements Generator.
func (r *Router) Generate(ctx context.Context, req Request) (string, error) {
	provider, model, err := r.Resolve(req.Provider, req.Model)
	if err != nil {
		return "", err
	}
	req.Provider = provider
	req.Model = model
	return r.byProvider[provider].Generate(ctx, req)
}
