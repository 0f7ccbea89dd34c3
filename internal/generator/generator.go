// Package generator produces candidate comments from context comments.
package generator

import (
	"context"
	"time"

	"github.com/hpungsan/murmur/internal/config"
)

// Generator produces comments for the buffer.
type Generator interface {
	// GenerateBatch returns a batch of candidate comments. It fails with a
	// GENERATOR_EXHAUSTED MurmurError once its own retries are used up.
	GenerateBatch(ctx context.Context, contextComments []string) ([]string, error)

	// GenerateSingleFallback returns one comment without any remote call.
	// It never fails.
	GenerateSingleFallback(contextComments []string) string
}

// Options tune the remote generator.
type Options struct {
	Model       string
	BatchSize   int
	MaxAttempts int

	// RetryDelay separates failed attempts. After more than
	// QuickRateLimitRetries rate-limited responses, RateLimitDelay is used
	// instead.
	RetryDelay            time.Duration
	RateLimitDelay        time.Duration
	QuickRateLimitRetries int
}

// OptionsFromConfig extracts generator options from the application config.
func OptionsFromConfig(cfg config.LLMConfig) Options {
	return Options{
		Model:                 cfg.Model,
		BatchSize:             cfg.BatchSize,
		MaxAttempts:           cfg.MaxAttempts,
		RetryDelay:            time.Duration(cfg.RetryDelaySeconds) * time.Second,
		RateLimitDelay:        time.Duration(cfg.RateLimitDelaySeconds) * time.Second,
		QuickRateLimitRetries: 3,
	}
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 5
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.QuickRateLimitRetries < 0 {
		o.QuickRateLimitRetries = 0
	}
	return o
}
