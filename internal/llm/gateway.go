// Package llm is the single chokepoint for model calls. Every backend is
// reached through Gateway, which returns a tagged Result instead of failing
// loudly on ordinary errors.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrEmptyPrompt is returned when a request carries no prompt text
var ErrEmptyPrompt = errors.New("llm: empty prompt")

// Request is one completion call
type Request struct {
	Prompt       string
	SystemPrompt string
	Temperature  *float64
	MaxTokens    int
}

// Result is either Content or Err, never both
type Result struct {
	Content string
	Err     error
}

// OK reports whether the call produced content
func (r Result) OK() bool {
	return r.Err == nil
}

// Gateway is the uniform call interface over interchangeable backends
type Gateway interface {
	Call(ctx context.Context, req Request) Result
}

// GatewayFunc adapts a function to Gateway
type GatewayFunc func(ctx context.Context, req Request) Result

// Call implements Gateway
func (f GatewayFunc) Call(ctx context.Context, req Request) Result {
	return f(ctx, req)
}

// Temperature returns a pointer for Request.Temperature
func Temperature(t float64) *float64 {
	return &t
}

// backend is implemented by each provider
type backend interface {
	name() string
	model() string
	complete(ctx context.Context, req Request) (string, error)
}

// gateway wraps a backend with validation, deadlines and logging
type gateway struct {
	backend backend
	timeout time.Duration
	logger  *zap.Logger
}

func (g *gateway) Call(ctx context.Context, req Request) Result {
	if strings.TrimSpace(req.Prompt) == "" {
		return Result{Err: ErrEmptyPrompt}
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := g.backend.complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		lerr := asError(g.backend.name(), g.backend.model(), err)
		g.logger.Warn("llm call failed",
			zap.String("provider", lerr.Provider),
			zap.String("model", lerr.Model),
			zap.String("kind", string(lerr.Kind)),
			zap.Duration("elapsed", elapsed),
			zap.Error(lerr.Err))
		return Result{Err: lerr}
	}
	if strings.TrimSpace(content) == "" {
		return Result{Err: &Error{
			Kind:     KindBadResponse,
			Provider: g.backend.name(),
			Model:    g.backend.model(),
			Message:  "empty completion",
			Hint:     hintFor(KindBadResponse, g.backend.name(), g.backend.model(), ""),
		}}
	}

	g.logger.Debug("llm call",
		zap.String("provider", g.backend.name()),
		zap.String("model", g.backend.model()),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Int("response_len", len(content)),
		zap.Duration("elapsed", elapsed))
	return Result{Content: content}
}
