package generator

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
)

// OpenAI generates comments through an OpenAI-compatible chat completions
// API such as OpenRouter.
type OpenAI struct {
	client   openai.Client
	opts     Options
	fallback *Fallback
	log      *zap.Logger
}

var _ Generator = (*OpenAI)(nil)

// NewOpenAI creates a generator from LLM config. fallback may be nil.
func NewOpenAI(cfg config.LLMConfig, fallback *Fallback, log *zap.Logger) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.NewInvalidRequest("llm api_key is required (set OPENROUTER_API_KEY or MURMUR_LLM_API_KEY)")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if fallback == nil {
		fallback = NewFallback(nil)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are owned by GenerateBatch.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client:   openai.NewClient(reqOpts...),
		opts:     OptionsFromConfig(cfg).withDefaults(),
		fallback: fallback,
		log:      log.Named("generator"),
	}, nil
}

// GenerateBatch asks the model for a numbered list of BatchSize comments.
// Empty context yields the static fallback batch without a remote call.
func (g *OpenAI) GenerateBatch(ctx context.Context, contextComments []string) ([]string, error) {
	if len(contextComments) == 0 {
		g.log.Warn("no context comments, using fallback batch")
		return g.fallback.Batch(g.opts.BatchSize), nil
	}

	prompt := buildPrompt(contextComments, g.opts.BatchSize)
	attempts := 0
	rateLimited := 0

	operation := func() ([]string, error) {
		attempts++
		g.log.Info("generating batch",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", g.opts.MaxAttempts))

		text, err := g.complete(ctx, prompt)
		if err != nil {
			if isRateLimited(err) {
				rateLimited++
				if rateLimited > g.opts.QuickRateLimitRetries {
					g.log.Warn("rate limited, waiting", zap.Duration("delay", g.opts.RateLimitDelay))
					return nil, backoff.RetryAfter(int(g.opts.RateLimitDelay / time.Second))
				}
			}
			return nil, err
		}

		comments, err := ParseNumbered(text, g.opts.BatchSize)
		if err != nil {
			return nil, err
		}
		return comments, nil
	}

	comments, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(g.opts.RetryDelay)),
		backoff.WithMaxTries(uint(g.opts.MaxAttempts)),
		backoff.WithMaxElapsedTime(g.maxElapsed()),
		backoff.WithNotify(func(err error, next time.Duration) {
			g.log.Warn("generation attempt failed", zap.Error(err), zap.Duration("retry_in", next))
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		g.log.Error("generation exhausted", zap.Int("attempts", attempts), zap.Error(err))
		return nil, errors.NewGeneratorExhausted(attempts, err)
	}

	g.log.Info("generated batch", zap.Int("comments", len(comments)), zap.Int("attempts", attempts))
	return comments, nil
}

// GenerateSingleFallback returns a locally built comment.
func (g *OpenAI) GenerateSingleFallback(contextComments []string) string {
	return g.fallback.Single(contextComments)
}

func (g *OpenAI) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty completion")
	}
	return content, nil
}

// maxElapsed bounds the whole retry loop generously enough that only
// MaxAttempts ends it.
func (g *OpenAI) maxElapsed() time.Duration {
	per := g.opts.RetryDelay + g.opts.RateLimitDelay + 10*time.Minute
	return time.Duration(g.opts.MaxAttempts) * per
}

func isRateLimited(err error) bool {
	var apiErr *openai.Error
	return stderrors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}
