package generation

import "context"

type limited struct {
	inner Generator
	sem   chan struct{}
}

// NewLimited wraps inner so at most maxConcurrent calls run at once. A
// non-positive limit returns inner unchanged. Waiting for a slot honours ctx.
func NewLimited(inner Generator, maxConcurrent int) Generator {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limited{inner: inner, sem: make(chan struct{}, maxConcurrent)}
}

func (l *limited) Generate(ctx context.Context, req Request) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Generate(ctx, req)
}
