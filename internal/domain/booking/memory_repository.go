package booking

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conciergelab/concierge-api/internal/types"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository serves queries from an immutable in-memory snapshot,
// typically loaded from the loyalty CSV when no database is configured.
// Ordering ties on booking_date are broken by original record order.
type MemoryRepository struct {
	records []types.BookingRecord
}

func NewMemoryRepository(records []types.BookingRecord) *MemoryRepository {
	snapshot := make([]types.BookingRecord, len(records))
	copy(snapshot, records)
	return &MemoryRepository{records: snapshot}
}

func (r *MemoryRepository) FindExact(ctx context.Context, room types.RoomType, tier types.LoyaltyTier) (*types.BookingRecord, error) {
	_, span := otel.Tracer("BookingRepo").Start(ctx, "FindExact", trace.WithAttributes(
		attribute.String("booking.room", string(room)),
		attribute.String("booking.tier", string(tier)),
	))
	defer span.End()

	var best *types.BookingRecord
	for i := range r.records {
		rec := &r.records[i]
		if rec.PreferredRoom != room || rec.LoyaltyTier != tier {
			continue
		}
		if best == nil || rec.BookingDate.After(best.BookingDate) {
			best = rec
		}
	}
	if best == nil {
		span.SetStatus(codes.Ok, "No exact match")
		return nil, types.ErrNotFound
	}

	out := *best
	span.SetStatus(codes.Ok, "Exact match found")
	return &out, nil
}

func (r *MemoryRepository) FindByGoal(ctx context.Context, goal types.TravelGoal, limit int) ([]types.BookingRecord, error) {
	_, span := otel.Tracer("BookingRepo").Start(ctx, "FindByGoal", trace.WithAttributes(
		attribute.String("booking.goal", string(goal)),
		attribute.Int("booking.limit", limit),
	))
	defer span.End()

	var matches []types.BookingRecord
	for _, rec := range r.records {
		if rec.Goal == goal {
			matches = append(matches, rec)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].BookingDate.After(matches[j].BookingDate)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	span.SetAttributes(attribute.Int("results.count", len(matches)))
	span.SetStatus(codes.Ok, "Bookings fetched")
	return matches, nil
}

func (r *MemoryRepository) FindLatestPrice(ctx context.Context, room types.RoomType, tier types.LoyaltyTier) (float64, error) {
	rec, err := r.FindExact(ctx, room, tier)
	if err != nil {
		return 0, err
	}
	return rec.FinalPrice, nil
}
