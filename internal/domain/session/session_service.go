package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/conciergelab/concierge-api/internal/domain/explanation"
	"github.com/conciergelab/concierge-api/internal/domain/recommendation"
	"github.com/conciergelab/concierge-api/internal/types"
	"github.com/conciergelab/concierge-api/pkg/observability"
)

const (
	secretMin       = 1
	secretMax       = 10
	luckDiscountPct = 0.05
)

var _ Service = (*ServiceImpl)(nil)

// Service drives one guest visit through the recommendation flow:
// collecting input -> recommendation ready -> choice made -> luck resolved ->
// finalized, plus reset. Every transition is stage-guarded: re-entering a
// stage that was already computed returns the cached session without
// touching the store, the explanation provider, or the secret number.
type Service interface {
	// Current returns a snapshot of the active session for rendering.
	Current(ctx context.Context) *types.SessionState

	// RequestRecommendation validates the guest inputs, queries for a
	// recommendation and decorates it with explanations. When the exact
	// match has no upsell offer the room is auto-confirmed.
	RequestRecommendation(ctx context.Context, inputs types.GuestInputs) (*types.SessionState, error)

	// ConfirmChoice records the guest's room selection: keep/upgrade on the
	// exact branch, a 1-based option index on the fallback branch.
	ConfirmChoice(ctx context.Context, choice types.RoomChoice) (*types.SessionState, error)

	// SubmitGuess resolves the one-shot discount game.
	SubmitGuess(ctx context.Context, guess int) (*types.SessionState, error)

	// Finalize freezes the price; no mutation is possible afterwards except
	// Reset.
	Finalize(ctx context.Context) (*types.SessionState, error)

	// Reset discards the session and starts a fresh one with a new secret
	// number.
	Reset(ctx context.Context) *types.SessionState
}

// Option configures the service.
type Option func(*ServiceImpl)

// WithSecretSource overrides the secret-number generator; tests use a
// deterministic source.
func WithSecretSource(fn func() int) Option {
	return func(s *ServiceImpl) {
		s.secretFn = fn
	}
}

// WithClock overrides time.Now for timestamp fields.
func WithClock(fn func() time.Time) Option {
	return func(s *ServiceImpl) {
		s.now = fn
	}
}

type ServiceImpl struct {
	recommender recommendation.Service
	explainer   explanation.Service
	logger      *slog.Logger
	secretFn    func() int
	now         func() time.Time

	// One active guest visit at a time; the mutex only exists because
	// net/http serves requests concurrently.
	mu    sync.Mutex
	state *types.SessionState
}

func NewService(recommender recommendation.Service, explainer explanation.Service, logger *slog.Logger, opts ...Option) *ServiceImpl {
	s := &ServiceImpl{
		recommender: recommender,
		explainer:   explainer,
		logger:      logger,
		secretFn: func() int {
			return rand.IntN(secretMax-secretMin+1) + secretMin
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ServiceImpl) newSession() *types.SessionState {
	now := s.now()
	return &types.SessionState{
		ID:           uuid.New(),
		Stage:        types.StageCollectingInput,
		SecretNumber: s.secretFn(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ensureSession lazily creates the session on first contact. Callers must
// hold s.mu.
func (s *ServiceImpl) ensureSession() *types.SessionState {
	if s.state == nil {
		s.state = s.newSession()
	}
	return s.state
}

// snapshot detaches the returned state from the live session so callers can
// never mutate it through the pointer and slice fields.
func snapshot(st *types.SessionState) *types.SessionState {
	out := *st
	if st.Recommendation != nil {
		rec := *st.Recommendation
		rec.Records = slices.Clone(st.Recommendation.Records)
		out.Recommendation = &rec
	}
	if st.Upsell != nil {
		offer := *st.Upsell
		out.Upsell = &offer
	}
	out.Explanations = slices.Clone(st.Explanations)
	if st.UpsellExplanation != nil {
		e := *st.UpsellExplanation
		out.UpsellExplanation = &e
	}
	return &out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *ServiceImpl) Current(ctx context.Context) *types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.ensureSession())
}

func (s *ServiceImpl) RequestRecommendation(ctx context.Context, inputs types.GuestInputs) (*types.SessionState, error) {
	ctx, span := otel.Tracer("SessionService").Start(ctx, "RequestRecommendation", trace.WithAttributes(
		attribute.String("guest.goal", string(inputs.Goal)),
		attribute.String("guest.tier", string(inputs.LoyaltyTier)),
		attribute.String("guest.room", string(inputs.PreferredRoom)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "RequestRecommendation"))

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensureSession()

	// Re-render of an already computed stage: serve the cached result, no
	// second store query or provider call.
	if st.Stage.Reached(types.StageRecommendationReady) {
		span.SetAttributes(attribute.Bool("session.cached", true))
		span.SetStatus(codes.Ok, "Recommendation already computed")
		return snapshot(st), nil
	}

	if strings.TrimSpace(inputs.GuestName) == "" {
		l.WarnContext(ctx, "Rejected recommendation request with empty guest name")
		span.SetStatus(codes.Error, "Guest name missing")
		return nil, types.ErrGuestNameRequired
	}
	if !inputs.Goal.Valid() || !inputs.LoyaltyTier.Valid() || !inputs.PreferredRoom.Valid() {
		span.SetStatus(codes.Error, "Invalid guest inputs")
		return nil, fmt.Errorf("%w: invalid guest inputs", types.ErrBadRequest)
	}

	result, err := s.recommender.Recommend(ctx, inputs.Goal, inputs.LoyaltyTier, inputs.PreferredRoom)
	if err != nil {
		// Includes types.ErrNoRecommendation: the stage stays at
		// collecting_input so the guest can retry with other inputs.
		l.WarnContext(ctx, "Recommendation unavailable", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Recommendation failed")
		return nil, err
	}

	switch result.Mode {
	case types.ModeExact:
		if err := s.prepareExactMatch(ctx, st, inputs, result); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Upsell computation failed")
			return nil, err
		}
	default:
		s.prepareFallback(ctx, st, inputs, result)
	}

	observability.RecommendationsTotal.WithLabelValues(string(result.Mode)).Inc()
	l.InfoContext(ctx, "Recommendation ready",
		slog.String("session_id", st.ID.String()),
		slog.String("mode", string(result.Mode)),
		slog.Int("candidates", len(result.Records)),
		slog.Bool("auto_confirmed", st.Stage == types.StageChoiceMade))

	span.SetAttributes(attribute.String("recommendation.mode", string(result.Mode)))
	span.SetStatus(codes.Ok, "Recommendation ready")
	return snapshot(st), nil
}

// prepareExactMatch decorates the single exact-match record, prices the
// upsell, and auto-confirms the room when no offer exists. Mutates st only
// after every external call has succeeded, so a failed upsell query leaves
// the stage untouched.
func (s *ServiceImpl) prepareExactMatch(ctx context.Context, st *types.SessionState, inputs types.GuestInputs, result *types.RecommendationResult) error {
	rec := result.Records[0]

	offer, err := s.recommender.ComputeUpsell(ctx, rec.PreferredRoom, inputs.LoyaltyTier, rec.FinalPrice)
	if err != nil {
		return err
	}

	base := s.explainer.Explain(ctx, types.ExplanationRequest{
		Goal: inputs.Goal,
		Room: rec.PreferredRoom,
		Tier: inputs.LoyaltyTier,
	})

	var upsellExpl *types.Explanation
	if offer != nil {
		e := s.explainer.Explain(ctx, types.ExplanationRequest{
			Goal:       inputs.Goal,
			Room:       rec.PreferredRoom,
			Tier:       inputs.LoyaltyTier,
			UpsellRoom: offer.TargetRoom,
			PriceDelta: offer.PriceDelta,
		})
		upsellExpl = &e
	}

	st.Inputs = inputs
	st.Recommendation = result
	st.Upsell = offer
	st.Explanations = []types.Explanation{base}
	st.UpsellExplanation = upsellExpl
	st.Stage = types.StageRecommendationReady
	st.UpdatedAt = s.now()

	if offer == nil {
		// Nothing to offer: the current room is confirmed without guest
		// action.
		s.confirmRoom(st, rec.PreferredRoom, rec.FinalPrice)
	}
	return nil
}

// prepareFallback decorates up to three goal candidates. Candidates regularly
// repeat a room type, so identical requests are collapsed before the fan-out
// and one provider call serves every aligned index. The provider never
// errors, so the group exists to fan out and to respect ctx cancellation.
func (s *ServiceImpl) prepareFallback(ctx context.Context, st *types.SessionState, inputs types.GuestInputs, result *types.RecommendationResult) {
	explanations := make([]types.Explanation, len(result.Records))
	indexesByRequest := make(map[types.ExplanationRequest][]int, len(result.Records))
	for i, rec := range result.Records {
		req := types.ExplanationRequest{
			Goal: inputs.Goal,
			Room: rec.PreferredRoom,
			Tier: inputs.LoyaltyTier,
		}
		indexesByRequest[req] = append(indexesByRequest[req], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	for req, indexes := range indexesByRequest {
		g.Go(func() error {
			e := s.explainer.Explain(gctx, req)
			for _, i := range indexes {
				explanations[i] = e
			}
			return nil
		})
	}
	_ = g.Wait()

	st.Inputs = inputs
	st.Recommendation = result
	st.Explanations = explanations
	st.Stage = types.StageRecommendationReady
	st.UpdatedAt = s.now()
}

// confirmRoom records the chosen room and price. Callers must hold s.mu.
func (s *ServiceImpl) confirmRoom(st *types.SessionState, room types.RoomType, price float64) {
	st.ChosenRoom = room
	st.FinalPrice = price
	st.OriginalPrice = price
	st.Stage = types.StageChoiceMade
	st.UpdatedAt = s.now()
}

func (s *ServiceImpl) ConfirmChoice(ctx context.Context, choice types.RoomChoice) (*types.SessionState, error) {
	_, span := otel.Tracer("SessionService").Start(ctx, "ConfirmChoice", trace.WithAttributes(
		attribute.Bool("choice.upgrade", choice.Upgrade),
		attribute.Int("choice.option", choice.Option),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ConfirmChoice"))

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensureSession()

	if st.Stage.Reached(types.StageChoiceMade) {
		span.SetAttributes(attribute.Bool("session.cached", true))
		span.SetStatus(codes.Ok, "Choice already made")
		return snapshot(st), nil
	}
	if st.Stage != types.StageRecommendationReady {
		span.SetStatus(codes.Error, "Wrong stage")
		return nil, types.ErrInvalidStage
	}

	switch st.Recommendation.Mode {
	case types.ModeExact:
		rec := st.Recommendation.Records[0]
		if choice.Upgrade {
			if st.Upsell == nil {
				span.SetStatus(codes.Error, "No upsell offer to accept")
				return nil, types.ErrInvalidChoice
			}
			s.confirmRoom(st, st.Upsell.TargetRoom, st.Upsell.Price)
		} else {
			s.confirmRoom(st, rec.PreferredRoom, rec.FinalPrice)
		}
	case types.ModeFallback:
		if choice.Option < 1 || choice.Option > len(st.Recommendation.Records) {
			span.SetStatus(codes.Error, "Option out of range")
			return nil, types.ErrInvalidChoice
		}
		rec := st.Recommendation.Records[choice.Option-1]
		s.confirmRoom(st, rec.PreferredRoom, rec.FinalPrice)
	}

	l.InfoContext(ctx, "Room choice confirmed",
		slog.String("session_id", st.ID.String()),
		slog.String("room", string(st.ChosenRoom)),
		slog.Float64("price", st.FinalPrice))

	span.SetAttributes(attribute.String("choice.room", string(st.ChosenRoom)))
	span.SetStatus(codes.Ok, "Choice confirmed")
	return snapshot(st), nil
}

func (s *ServiceImpl) SubmitGuess(ctx context.Context, guess int) (*types.SessionState, error) {
	_, span := otel.Tracer("SessionService").Start(ctx, "SubmitGuess", trace.WithAttributes(
		attribute.Int("luck.guess", guess),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SubmitGuess"))

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensureSession()

	// The game is one-shot: once resolved, re-submitting shows the stored
	// outcome and never redraws the secret.
	if st.UsedLuck || st.Stage.Reached(types.StageLuckResolved) {
		span.SetAttributes(attribute.Bool("session.cached", true))
		span.SetStatus(codes.Ok, "Luck already resolved")
		return snapshot(st), nil
	}
	if st.Stage != types.StageChoiceMade {
		span.SetStatus(codes.Error, "Wrong stage")
		return nil, types.ErrInvalidStage
	}
	if guess < secretMin || guess > secretMax {
		span.SetStatus(codes.Error, "Guess out of range")
		return nil, types.ErrInvalidGuess
	}

	if guess == st.SecretNumber {
		st.FinalPrice = round2(st.OriginalPrice * (1 - luckDiscountPct))
		st.GotLucky = true
		observability.LuckOutcomesTotal.WithLabelValues("win").Inc()
	} else {
		st.GotLucky = false
		observability.LuckOutcomesTotal.WithLabelValues("lose").Inc()
	}
	st.UsedLuck = true
	st.Stage = types.StageLuckResolved
	st.UpdatedAt = s.now()

	l.InfoContext(ctx, "Luck resolved",
		slog.String("session_id", st.ID.String()),
		slog.Bool("got_lucky", st.GotLucky),
		slog.Float64("final_price", st.FinalPrice))

	span.SetAttributes(attribute.Bool("luck.won", st.GotLucky))
	span.SetStatus(codes.Ok, "Luck resolved")
	return snapshot(st), nil
}

func (s *ServiceImpl) Finalize(ctx context.Context) (*types.SessionState, error) {
	_, span := otel.Tracer("SessionService").Start(ctx, "Finalize")
	defer span.End()

	l := s.logger.With(slog.String("method", "Finalize"))

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensureSession()

	if st.Stage == types.StageFinalized {
		span.SetAttributes(attribute.Bool("session.cached", true))
		span.SetStatus(codes.Ok, "Already finalized")
		return snapshot(st), nil
	}
	if st.Stage != types.StageLuckResolved {
		span.SetStatus(codes.Error, "Wrong stage")
		return nil, types.ErrInvalidStage
	}

	st.Stage = types.StageFinalized
	st.UpdatedAt = s.now()

	l.InfoContext(ctx, "Session finalized",
		slog.String("session_id", st.ID.String()),
		slog.String("room", string(st.ChosenRoom)),
		slog.Float64("final_price", st.FinalPrice))

	span.SetStatus(codes.Ok, "Finalized")
	return snapshot(st), nil
}

func (s *ServiceImpl) Reset(ctx context.Context) *types.SessionState {
	_, span := otel.Tracer("SessionService").Start(ctx, "Reset")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = s.newSession()
	s.logger.InfoContext(ctx, "Session reset", slog.String("session_id", s.state.ID.String()))

	span.SetStatus(codes.Ok, "Session reset")
	return snapshot(s.state)
}
