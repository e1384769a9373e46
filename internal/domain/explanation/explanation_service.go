package explanation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conciergelab/concierge-api/internal/llm"
	"github.com/conciergelab/concierge-api/internal/types"
	"github.com/conciergelab/concierge-api/pkg/observability"
)

var _ Service = (*ServiceImpl)(nil)

// Service turns a recommendation context into guest-readable text. Explain
// never fails and never returns empty text: after the retry budget is spent
// it degrades to a locally synthesized sentence marked as a fallback.
type Service interface {
	Explain(ctx context.Context, req types.ExplanationRequest) types.Explanation
}

// RetryPolicy bounds the remote call: maxAttempts total tries with
// exponential backoff between them, each attempt under its own timeout.
type RetryPolicy struct {
	MaxAttempts    uint64
	InitialBackoff time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy mirrors the service defaults: 3 attempts, 2s/4s waits,
// 20s per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		AttemptTimeout: 20 * time.Second,
	}
}

type ServiceImpl struct {
	client llm.ChatClient
	logger *slog.Logger
	policy RetryPolicy

	// memo holds one entry per distinct (goal, room, tier, upsell, delta)
	// tuple so re-rendering a stage never re-hits the network.
	memo *cache.Cache
}

func NewService(client llm.ChatClient, policy RetryPolicy, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		client: client,
		logger: logger,
		policy: policy,
		memo:   cache.New(48*time.Hour, 1*time.Hour),
	}
}

func memoKey(req types.ExplanationRequest) string {
	return fmt.Sprintf("%s|%s|%s|%s|%.2f", req.Goal, req.Room, req.Tier, req.UpsellRoom, req.PriceDelta)
}

func (s *ServiceImpl) Explain(ctx context.Context, req types.ExplanationRequest) types.Explanation {
	ctx, span := otel.Tracer("ExplanationService").Start(ctx, "Explain", trace.WithAttributes(
		attribute.String("explanation.goal", string(req.Goal)),
		attribute.String("explanation.room", string(req.Room)),
		attribute.String("explanation.tier", string(req.Tier)),
		attribute.String("explanation.upsell_room", string(req.UpsellRoom)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Explain"))

	key := memoKey(req)
	if cached, found := s.memo.Get(key); found {
		span.SetAttributes(attribute.Bool("explanation.cached", true))
		span.SetStatus(codes.Ok, "Explanation served from cache")
		return cached.(types.Explanation)
	}

	start := time.Now()
	defer func() {
		observability.ExplanationDuration.Observe(time.Since(start).Seconds())
	}()

	prompt := buildExplanationPrompt(req)

	var text string
	backoff := retry.WithMaxRetries(s.policy.MaxAttempts-1, retry.NewExponential(s.policy.InitialBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.policy.AttemptTimeout)
		defer cancel()

		out, err := s.client.GenerateCompletion(attemptCtx, prompt)
		if err != nil {
			l.WarnContext(ctx, "Explanation attempt failed", slog.Any("error", err))
			return retry.RetryableError(err)
		}
		if strings.TrimSpace(out) == "" {
			l.WarnContext(ctx, "Explanation attempt returned empty text")
			return retry.RetryableError(fmt.Errorf("empty explanation text"))
		}
		text = out
		return nil
	})

	result := types.Explanation{Text: text}
	if err != nil {
		l.WarnContext(ctx, "Explanation degraded to local fallback",
			slog.String("model", s.client.Model()),
			slog.Any("error", err))
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("explanation.fallback", true))
		observability.ExplanationFallbacksTotal.Inc()
		result = types.Explanation{
			Text:     fallbackExplanation(req),
			Fallback: true,
		}
	}

	s.memo.Set(key, result, cache.DefaultExpiration)

	span.SetStatus(codes.Ok, "Explanation resolved")
	return result
}
