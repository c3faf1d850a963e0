package generation

import (
	"context"

	"github.com/phrazzld/inkwell/internal/domain"
)

// Request describes one generation call.
type Request struct {
	Prompt      string
	ContentType domain.ContentType
	Provider    domain.Provider
	Model       string
}

// Generator is the boundary between the application and an external text
// generation service.
type Generator interface {
	// Generate returns the generated text for req. Errors wrap one of the
	// package's sentinel errors.
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
