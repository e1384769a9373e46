package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciergelab/concierge-api/internal/types"
)

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func testRecords() []types.BookingRecord {
	return []types.BookingRecord{
		{GuestName: "Ana", Goal: types.GoalRelax, LoyaltyTier: types.TierGold, PreferredRoom: types.RoomDeluxe, BookingDate: day(1), FinalPrice: 140.0},
		{GuestName: "Ben", Goal: types.GoalRelax, LoyaltyTier: types.TierGold, PreferredRoom: types.RoomDeluxe, BookingDate: day(5), FinalPrice: 150.0},
		{GuestName: "Cia", Goal: types.GoalRelax, LoyaltyTier: types.TierGold, PreferredRoom: types.RoomSuite, BookingDate: day(3), FinalPrice: 200.0},
		{GuestName: "Dan", Goal: types.GoalExplore, LoyaltyTier: types.TierSilver, PreferredRoom: types.RoomStandard, BookingDate: day(2), FinalPrice: 90.0},
		{GuestName: "Eve", Goal: types.GoalRelax, LoyaltyTier: types.TierNone, PreferredRoom: types.RoomStandard, BookingDate: day(4), FinalPrice: 95.0},
		{GuestName: "Fox", Goal: types.GoalRelax, LoyaltyTier: types.TierBronze, PreferredRoom: types.RoomStandard, BookingDate: day(4), FinalPrice: 99.0},
	}
}

func TestMemoryRepository_FindExact(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(testRecords())

	t.Run("picks the most recent matching record", func(t *testing.T) {
		rec, err := repo.FindExact(ctx, types.RoomDeluxe, types.TierGold)
		require.NoError(t, err)
		assert.Equal(t, "Ben", rec.GuestName)
		assert.Equal(t, 150.0, rec.FinalPrice)
	})

	t.Run("date ties keep original store order", func(t *testing.T) {
		// Eve and Fox share a booking date but differ in tier, so query a
		// goal with a genuine tie instead.
		recs, err := repo.FindByGoal(ctx, types.GoalRelax, 10)
		require.NoError(t, err)
		// day(4) tie: Eve was inserted before Fox and must stay first.
		var tieOrder []string
		for _, r := range recs {
			if r.BookingDate.Equal(day(4)) {
				tieOrder = append(tieOrder, r.GuestName)
			}
		}
		assert.Equal(t, []string{"Eve", "Fox"}, tieOrder)
	})

	t.Run("no match returns ErrNotFound", func(t *testing.T) {
		_, err := repo.FindExact(ctx, types.RoomExecutiveSuite, types.TierPlatinum)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestMemoryRepository_FindByGoal(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(testRecords())

	t.Run("orders most recent first and honors limit", func(t *testing.T) {
		recs, err := repo.FindByGoal(ctx, types.GoalRelax, 3)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, "Ben", recs[0].GuestName)
		assert.Equal(t, day(5), recs[0].BookingDate)
		assert.True(t, recs[1].BookingDate.After(recs[2].BookingDate) ||
			recs[1].BookingDate.Equal(recs[2].BookingDate))
	})

	t.Run("unknown goal returns empty slice", func(t *testing.T) {
		recs, err := repo.FindByGoal(ctx, types.GoalWork, 3)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func TestMemoryRepository_FindLatestPrice(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(testRecords())

	price, err := repo.FindLatestPrice(ctx, types.RoomSuite, types.TierGold)
	require.NoError(t, err)
	assert.Equal(t, 200.0, price)

	_, err = repo.FindLatestPrice(ctx, types.RoomSuite, types.TierPlatinum)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestMemoryRepository_SnapshotIsIsolated(t *testing.T) {
	records := testRecords()
	repo := NewMemoryRepository(records)

	records[1].FinalPrice = 1.0

	rec, err := repo.FindExact(context.Background(), types.RoomDeluxe, types.TierGold)
	require.NoError(t, err)
	assert.Equal(t, 150.0, rec.FinalPrice)
}
