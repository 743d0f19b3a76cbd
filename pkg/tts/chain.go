package tts

import (
	"context"
	"fmt"
	"log/slog"
)

// Chain implements Synthesizer by trying multiple engines in order.
// The first successful engine wins; if all fail, returns an aggregate error.
type Chain struct {
	engines []Synthesizer
	logger  *slog.Logger
}

// NewChain creates an engine chain that tries engines in order.
// At least one engine is required.
func NewChain(engines ...Synthesizer) (*Chain, error) {
	if len(engines) == 0 {
		return nil, ErrEngineUnavailable
	}

	return &Chain{
		engines: engines,
		logger:  slog.Default().With("component", "tts.chain"),
	}, nil
}

// NewChainWithLogger creates an engine chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, engines ...Synthesizer) (*Chain, error) {
	chain, err := NewChain(engines...)
	if err != nil {
		return nil, err
	}
	chain.logger = logger.With("component", "tts.chain")
	return chain, nil
}

// Synthesize tries each engine until one succeeds.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var errs []error

	for i, e := range c.engines {
		result, err := e.Synthesize(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback engine succeeded",
					"engine_index", i,
					"chars", len(text),
				)
			}
			return result, nil
		}

		errs = append(errs, err)
		c.logger.Warn("engine failed, trying next",
			"engine_index", i,
			"error", err,
		)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &ChainError{Errors: errs}
}

// Health checks all engines and returns error if all are unhealthy.
func (c *Chain) Health(ctx context.Context) error {
	var healthy int
	var lastErr error

	for _, e := range c.engines {
		if err := e.Health(ctx); err != nil {
			lastErr = err
		} else {
			healthy++
		}
	}

	if healthy == 0 {
		return fmt.Errorf("all %d engines unhealthy: %w", len(c.engines), lastErr)
	}

	c.logger.Debug("health check complete",
		"healthy", healthy,
		"total", len(c.engines),
	)

	return nil
}

// Close closes all engines.
func (c *Chain) Close() error {
	var lastErr error
	for _, e := range c.engines {
		if err := e.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Engines returns the list of engines in the chain.
func (c *Chain) Engines() []Synthesizer {
	return c.engines
}

// ChainError aggregates errors from all engines in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "tts chain: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("tts chain: all %d engines failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the chain.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// Verify Chain implements Synthesizer at compile time.
var _ Synthesizer = (*Chain)(nil)
