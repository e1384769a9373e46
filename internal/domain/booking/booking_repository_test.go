package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciergelab/concierge-api/internal/types"
)

func setupPostgresRepoTest(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPostgresRepository(mockPool, logger), mockPool
}

func bookingRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"guest_name", "goal", "loyalty_tier", "preferred_room",
		"booking_date", "base_price", "loyalty_discount", "final_price",
	})
}

func TestPostgresRepository_FindExact(t *testing.T) {
	ctx := context.Background()
	bookedAt := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	t.Run("returns most recent exact match", func(t *testing.T) {
		repo, mockPool := setupPostgresRepoTest(t)
		mockPool.ExpectQuery("SELECT .+ FROM loyalty_bookings WHERE preferred_room = .+ AND loyalty_tier = .+ ORDER BY booking_date DESC").
			WithArgs(types.RoomDeluxe, types.TierGold).
			WillReturnRows(bookingRows().AddRow(
				"Alice", types.GoalRelax, types.TierGold, types.RoomDeluxe,
				bookedAt, 165.0, 10.0, 150.0,
			))

		rec, err := repo.FindExact(ctx, types.RoomDeluxe, types.TierGold)
		require.NoError(t, err)
		assert.Equal(t, types.RoomDeluxe, rec.PreferredRoom)
		assert.Equal(t, types.TierGold, rec.LoyaltyTier)
		assert.Equal(t, 150.0, rec.FinalPrice)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("no rows maps to ErrNotFound", func(t *testing.T) {
		repo, mockPool := setupPostgresRepoTest(t)
		mockPool.ExpectQuery("SELECT .+ FROM loyalty_bookings").
			WithArgs(types.RoomSuite, types.TierBronze).
			WillReturnRows(bookingRows())

		_, err := repo.FindExact(ctx, types.RoomSuite, types.TierBronze)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("query error is wrapped", func(t *testing.T) {
		repo, mockPool := setupPostgresRepoTest(t)
		dbErr := errors.New("connection reset")
		mockPool.ExpectQuery("SELECT .+ FROM loyalty_bookings").
			WithArgs(types.RoomStandard, types.TierNone).
			WillReturnError(dbErr)

		_, err := repo.FindExact(ctx, types.RoomStandard, types.TierNone)
		require.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "database error fetching exact match")
	})
}

func TestPostgresRepository_FindByGoal(t *testing.T) {
	ctx := context.Background()

	t.Run("returns up to limit rows most recent first", func(t *testing.T) {
		repo, mockPool := setupPostgresRepoTest(t)
		rows := bookingRows().
			AddRow("Bea", types.GoalExplore, types.TierSilver, types.RoomSuite,
				time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), 210.0, 5.0, 199.5).
			AddRow("Cal", types.GoalExplore, types.TierNone, types.RoomStandard,
				time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC), 90.0, 0.0, 90.0)
		mockPool.ExpectQuery("SELECT .+ FROM loyalty_bookings WHERE goal = .+ ORDER BY booking_date DESC").
			WithArgs(types.GoalExplore).
			WillReturnRows(rows)

		records, err := repo.FindByGoal(ctx, types.GoalExplore, 3)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "Bea", records[0].GuestName)
		assert.Equal(t, "Cal", records[1].GuestName)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("no rows yields empty slice, not an error", func(t *testing.T) {
		repo, mockPool := setupPostgresRepoTest(t)
		mockPool.ExpectQuery("SELECT .+ FROM loyalty_bookings WHERE goal = .+").
			WithArgs(types.GoalWork).
			WillReturnRows(bookingRows())

		records, err := repo.FindByGoal(ctx, types.GoalWork, 3)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestPostgresRepository_FindLatestPrice(t *testing.T) {
	ctx := context.Background()

	t.Run("returns most recent final price", func(t *testing.T) {
		repo, mockPool := setupPostgresRepoTest(t)
		mockPool.ExpectQuery("SELECT final_price FROM loyalty_bookings").
			WithArgs(types.RoomSuite, types.TierGold).
			WillReturnRows(pgxmock.NewRows([]string{"final_price"}).AddRow(200.0))

		price, err := repo.FindLatestPrice(ctx, types.RoomSuite, types.TierGold)
		require.NoError(t, err)
		assert.Equal(t, 200.0, price)
	})

	t.Run("missing room/tier maps to ErrNotFound", func(t *testing.T) {
		repo, mockPool := setupPostgresRepoTest(t)
		mockPool.ExpectQuery("SELECT final_price FROM loyalty_bookings").
			WithArgs(types.RoomExecutiveSuite, types.TierPlatinum).
			WillReturnRows(pgxmock.NewRows([]string{"final_price"}))

		_, err := repo.FindLatestPrice(ctx, types.RoomExecutiveSuite, types.TierPlatinum)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}
