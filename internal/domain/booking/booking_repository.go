package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/conciergelab/concierge-api/internal/types"
)

var _ Repository = (*PostgresRepository)(nil)

// Repository is the read-only contract over historical loyalty bookings.
// The store never mutates during a session, so there are no transactional
// concerns here.
type Repository interface {
	// FindExact returns the most recent booking matching both room type and
	// loyalty tier, or types.ErrNotFound.
	FindExact(ctx context.Context, room types.RoomType, tier types.LoyaltyTier) (*types.BookingRecord, error)

	// FindByGoal returns up to limit most-recent bookings for the goal,
	// most recent first, regardless of room or tier.
	FindByGoal(ctx context.Context, goal types.TravelGoal, limit int) ([]types.BookingRecord, error)

	// FindLatestPrice returns the most recent final price for a room/tier
	// pair, or types.ErrNotFound. Used for upsell pricing.
	FindLatestPrice(ctx context.Context, room types.RoomType, tier types.LoyaltyTier) (float64, error)
}

// DBPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads the loyalty_bookings table populated by the bulk
// importer.
type PostgresRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewPostgresRepository(db DBPool, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const bookingColumns = "guest_name, goal, loyalty_tier, preferred_room, booking_date, base_price, loyalty_discount, final_price"

func (r *PostgresRepository) FindExact(ctx context.Context, room types.RoomType, tier types.LoyaltyTier) (*types.BookingRecord, error) {
	ctx, span := otel.Tracer("BookingRepo").Start(ctx, "FindExact", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "loyalty_bookings"),
		attribute.String("booking.room", string(room)),
		attribute.String("booking.tier", string(tier)),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "FindExact"))

	query, args, err := psql.Select(bookingColumns).
		From("loyalty_bookings").
		Where("preferred_room = ?", room).
		Where("loyalty_tier = ?", tier).
		OrderBy("booking_date DESC").
		Limit(1).
		ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build exact match query: %w", err)
	}

	var rec types.BookingRecord
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&rec.GuestName,
		&rec.Goal,
		&rec.LoyaltyTier,
		&rec.PreferredRoom,
		&rec.BookingDate,
		&rec.BasePrice,
		&rec.LoyaltyDiscount,
		&rec.FinalPrice,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "No exact match")
			return nil, types.ErrNotFound
		}
		l.ErrorContext(ctx, "Failed to query exact match", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching exact match: %w", err)
	}

	span.SetStatus(codes.Ok, "Exact match found")
	return &rec, nil
}

func (r *PostgresRepository) FindByGoal(ctx context.Context, goal types.TravelGoal, limit int) ([]types.BookingRecord, error) {
	ctx, span := otel.Tracer("BookingRepo").Start(ctx, "FindByGoal", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "loyalty_bookings"),
		attribute.String("booking.goal", string(goal)),
		attribute.Int("booking.limit", limit),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "FindByGoal"))

	query, args, err := psql.Select(bookingColumns).
		From("loyalty_bookings").
		Where("goal = ?", goal).
		OrderBy("booking_date DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build goal query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query bookings by goal", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching bookings by goal: %w", err)
	}
	defer rows.Close()

	var records []types.BookingRecord
	for rows.Next() {
		var rec types.BookingRecord
		if err := rows.Scan(
			&rec.GuestName,
			&rec.Goal,
			&rec.LoyaltyTier,
			&rec.PreferredRoom,
			&rec.BookingDate,
			&rec.BasePrice,
			&rec.LoyaltyDiscount,
			&rec.FinalPrice,
		); err != nil {
			l.ErrorContext(ctx, "Failed to scan booking row", slog.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning booking: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		l.ErrorContext(ctx, "Error iterating booking rows", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading bookings: %w", err)
	}

	l.DebugContext(ctx, "Fetched bookings by goal", slog.Int("count", len(records)))
	span.SetAttributes(attribute.Int("results.count", len(records)))
	span.SetStatus(codes.Ok, "Bookings fetched")
	return records, nil
}

func (r *PostgresRepository) FindLatestPrice(ctx context.Context, room types.RoomType, tier types.LoyaltyTier) (float64, error) {
	ctx, span := otel.Tracer("BookingRepo").Start(ctx, "FindLatestPrice", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "loyalty_bookings"),
		attribute.String("booking.room", string(room)),
		attribute.String("booking.tier", string(tier)),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "FindLatestPrice"))

	query, args, err := psql.Select("final_price").
		From("loyalty_bookings").
		Where("preferred_room = ?", room).
		Where("loyalty_tier = ?", tier).
		OrderBy("booking_date DESC").
		Limit(1).
		ToSql()
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to build latest price query: %w", err)
	}

	var price float64
	err = r.db.QueryRow(ctx, query, args...).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "No price for room/tier")
			return 0, types.ErrNotFound
		}
		l.ErrorContext(ctx, "Failed to query latest price", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return 0, fmt.Errorf("database error fetching latest price: %w", err)
	}

	span.SetStatus(codes.Ok, "Latest price found")
	return price, nil
}
