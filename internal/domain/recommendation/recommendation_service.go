package recommendation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conciergelab/concierge-api/internal/domain/booking"
	"github.com/conciergelab/concierge-api/internal/types"
)

// fallbackLimit caps the number of candidates on the goal-based fallback path.
const fallbackLimit = 3

var _ Service = (*ServiceImpl)(nil)

// Service selects a recommendation from historical bookings and prices
// upsell offers.
type Service interface {
	// Recommend tries an exact room/tier match first and falls back to the
	// most recent bookings for the guest's goal. An empty result surfaces as
	// types.ErrNoRecommendation.
	Recommend(ctx context.Context, goal types.TravelGoal, tier types.LoyaltyTier, room types.RoomType) (*types.RecommendationResult, error)

	// FindUpsellTarget returns the room one tier above room, or false.
	FindUpsellTarget(room types.RoomType) (types.RoomType, bool)

	// ComputeUpsell prices an upgrade from room at currentPrice. A nil offer
	// with nil error means no upsell is available and the caller should
	// auto-confirm the current room.
	ComputeUpsell(ctx context.Context, room types.RoomType, tier types.LoyaltyTier, currentPrice float64) (*types.UpsellOffer, error)
}

type ServiceImpl struct {
	repo   booking.Repository
	logger *slog.Logger
}

func NewService(repo booking.Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

func (s *ServiceImpl) Recommend(ctx context.Context, goal types.TravelGoal, tier types.LoyaltyTier, room types.RoomType) (*types.RecommendationResult, error) {
	ctx, span := otel.Tracer("RecommendationService").Start(ctx, "Recommend", trace.WithAttributes(
		attribute.String("guest.goal", string(goal)),
		attribute.String("guest.tier", string(tier)),
		attribute.String("guest.room", string(room)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Recommend"))

	exact, err := s.repo.FindExact(ctx, room, tier)
	if err == nil {
		l.InfoContext(ctx, "Exact match found",
			slog.String("room", string(room)),
			slog.String("tier", string(tier)))
		span.SetAttributes(attribute.String("recommendation.mode", string(types.ModeExact)))
		span.SetStatus(codes.Ok, "Exact match")
		return &types.RecommendationResult{
			Mode:    types.ModeExact,
			Records: []types.BookingRecord{*exact},
		}, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		l.ErrorContext(ctx, "Failed to query exact match", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Exact match query failed")
		return nil, fmt.Errorf("error fetching exact match: %w", err)
	}

	candidates, err := s.repo.FindByGoal(ctx, goal, fallbackLimit)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query fallback candidates", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Fallback query failed")
		return nil, fmt.Errorf("error fetching fallback candidates: %w", err)
	}
	if len(candidates) == 0 {
		l.WarnContext(ctx, "No recommendations available",
			slog.String("goal", string(goal)),
			slog.String("room", string(room)),
			slog.String("tier", string(tier)))
		span.SetStatus(codes.Error, "No recommendations")
		return nil, types.ErrNoRecommendation
	}

	l.InfoContext(ctx, "Fallback recommendations found",
		slog.String("goal", string(goal)),
		slog.Int("count", len(candidates)))
	span.SetAttributes(
		attribute.String("recommendation.mode", string(types.ModeFallback)),
		attribute.Int("recommendation.count", len(candidates)),
	)
	span.SetStatus(codes.Ok, "Fallback match")
	return &types.RecommendationResult{
		Mode:    types.ModeFallback,
		Records: candidates,
	}, nil
}

func (s *ServiceImpl) FindUpsellTarget(room types.RoomType) (types.RoomType, bool) {
	return room.NextUp()
}

func (s *ServiceImpl) ComputeUpsell(ctx context.Context, room types.RoomType, tier types.LoyaltyTier, currentPrice float64) (*types.UpsellOffer, error) {
	ctx, span := otel.Tracer("RecommendationService").Start(ctx, "ComputeUpsell", trace.WithAttributes(
		attribute.String("guest.room", string(room)),
		attribute.String("guest.tier", string(tier)),
		attribute.Float64("guest.current_price", currentPrice),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ComputeUpsell"))

	target, ok := s.FindUpsellTarget(room)
	if !ok {
		span.SetStatus(codes.Ok, "No upsell target")
		return nil, nil
	}

	price, err := s.repo.FindLatestPrice(ctx, target, tier)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.DebugContext(ctx, "No price for upsell target",
				slog.String("target", string(target)),
				slog.String("tier", string(tier)))
			span.SetStatus(codes.Ok, "No upsell price")
			return nil, nil
		}
		l.ErrorContext(ctx, "Failed to price upsell target", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upsell price query failed")
		return nil, fmt.Errorf("error pricing upsell target: %w", err)
	}

	delta := price - currentPrice
	if delta <= 0 {
		l.DebugContext(ctx, "Upsell suppressed, non-positive delta",
			slog.String("target", string(target)),
			slog.Float64("delta", delta))
		span.SetStatus(codes.Ok, "Upsell suppressed")
		return nil, nil
	}

	l.InfoContext(ctx, "Upsell offer built",
		slog.String("target", string(target)),
		slog.Float64("delta", delta))
	span.SetAttributes(
		attribute.String("upsell.target", string(target)),
		attribute.Float64("upsell.delta", delta),
	)
	span.SetStatus(codes.Ok, "Upsell offer built")
	return &types.UpsellOffer{
		TargetRoom: target,
		Price:      price,
		PriceDelta: delta,
	}, nil
}
