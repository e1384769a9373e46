package recommendation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/conciergelab/concierge-api/internal/types"
)

// MockBookingRepo is a mock implementation of booking.Repository
type MockBookingRepo struct {
	mock.Mock
}

func (m *MockBookingRepo) FindExact(ctx context.Context, room types.RoomType, tier types.LoyaltyTier) (*types.BookingRecord, error) {
	args := m.Called(ctx, room, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.BookingRecord), args.Error(1)
}

func (m *MockBookingRepo) FindByGoal(ctx context.Context, goal types.TravelGoal, limit int) ([]types.BookingRecord, error) {
	args := m.Called(ctx, goal, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.BookingRecord), args.Error(1)
}

func (m *MockBookingRepo) FindLatestPrice(ctx context.Context, room types.RoomType, tier types.LoyaltyTier) (float64, error) {
	args := m.Called(ctx, room, tier)
	return args.Get(0).(float64), args.Error(1)
}

func setupRecommendationServiceTest() (*ServiceImpl, *MockBookingRepo) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockRepo := new(MockBookingRepo)
	service := NewService(mockRepo, logger)
	return service, mockRepo
}

func TestServiceImpl_Recommend(t *testing.T) {
	ctx := context.Background()

	t.Run("exact match wins over fallback", func(t *testing.T) {
		service, mockRepo := setupRecommendationServiceTest()
		exact := &types.BookingRecord{
			Goal:          types.GoalRelax,
			LoyaltyTier:   types.TierGold,
			PreferredRoom: types.RoomDeluxe,
			BookingDate:   time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
			FinalPrice:    150.0,
		}
		mockRepo.On("FindExact", mock.Anything, types.RoomDeluxe, types.TierGold).Return(exact, nil).Once()

		result, err := service.Recommend(ctx, types.GoalRelax, types.TierGold, types.RoomDeluxe)
		require.NoError(t, err)
		assert.Equal(t, types.ModeExact, result.Mode)
		require.Len(t, result.Records, 1)
		assert.Equal(t, *exact, result.Records[0])
		mockRepo.AssertExpectations(t)
		mockRepo.AssertNotCalled(t, "FindByGoal")
	})

	t.Run("falls back to goal candidates when no exact match", func(t *testing.T) {
		service, mockRepo := setupRecommendationServiceTest()
		candidates := []types.BookingRecord{
			{PreferredRoom: types.RoomSuite, Goal: types.GoalExplore, FinalPrice: 199.5},
			{PreferredRoom: types.RoomStandard, Goal: types.GoalExplore, FinalPrice: 90.0},
		}
		mockRepo.On("FindExact", mock.Anything, types.RoomSuite, types.TierBronze).Return(nil, types.ErrNotFound).Once()
		mockRepo.On("FindByGoal", mock.Anything, types.GoalExplore, 3).Return(candidates, nil).Once()

		result, err := service.Recommend(ctx, types.GoalExplore, types.TierBronze, types.RoomSuite)
		require.NoError(t, err)
		assert.Equal(t, types.ModeFallback, result.Mode)
		assert.Len(t, result.Records, 2)
		mockRepo.AssertExpectations(t)
	})

	t.Run("empty fallback signals ErrNoRecommendation", func(t *testing.T) {
		service, mockRepo := setupRecommendationServiceTest()
		mockRepo.On("FindExact", mock.Anything, types.RoomDeluxe, types.TierSilver).Return(nil, types.ErrNotFound).Once()
		mockRepo.On("FindByGoal", mock.Anything, types.GoalWork, 3).Return([]types.BookingRecord{}, nil).Once()

		_, err := service.Recommend(ctx, types.GoalWork, types.TierSilver, types.RoomDeluxe)
		assert.ErrorIs(t, err, types.ErrNoRecommendation)
		mockRepo.AssertExpectations(t)
	})

	t.Run("repository error is wrapped", func(t *testing.T) {
		service, mockRepo := setupRecommendationServiceTest()
		repoErr := errors.New("db down")
		mockRepo.On("FindExact", mock.Anything, types.RoomDeluxe, types.TierGold).Return(nil, repoErr).Once()

		_, err := service.Recommend(ctx, types.GoalRelax, types.TierGold, types.RoomDeluxe)
		require.Error(t, err)
		assert.ErrorIs(t, err, repoErr)
		assert.Contains(t, err.Error(), "error fetching exact match")
	})
}

func TestServiceImpl_FindUpsellTarget(t *testing.T) {
	service, _ := setupRecommendationServiceTest()

	tests := []struct {
		room   types.RoomType
		target types.RoomType
		ok     bool
	}{
		{types.RoomStandard, types.RoomDeluxe, true},
		{types.RoomDeluxe, types.RoomSuite, true},
		{types.RoomSuite, types.RoomExecutiveSuite, true},
		{types.RoomExecutiveSuite, "", false},
		{types.RoomType("Penthouse"), "", false},
	}
	for _, tc := range tests {
		t.Run(string(tc.room), func(t *testing.T) {
			target, ok := service.FindUpsellTarget(tc.room)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.target, target)
		})
	}
}

func TestServiceImpl_ComputeUpsell(t *testing.T) {
	ctx := context.Background()

	t.Run("builds offer with positive delta", func(t *testing.T) {
		service, mockRepo := setupRecommendationServiceTest()
		mockRepo.On("FindLatestPrice", mock.Anything, types.RoomSuite, types.TierGold).Return(200.0, nil).Once()

		offer, err := service.ComputeUpsell(ctx, types.RoomDeluxe, types.TierGold, 150.0)
		require.NoError(t, err)
		require.NotNil(t, offer)
		assert.Equal(t, types.RoomSuite, offer.TargetRoom)
		assert.Equal(t, 200.0, offer.Price)
		assert.Equal(t, 50.0, offer.PriceDelta)
		mockRepo.AssertExpectations(t)
	})

	t.Run("top tier room has no offer", func(t *testing.T) {
		service, mockRepo := setupRecommendationServiceTest()

		offer, err := service.ComputeUpsell(ctx, types.RoomExecutiveSuite, types.TierGold, 300.0)
		require.NoError(t, err)
		assert.Nil(t, offer)
		mockRepo.AssertNotCalled(t, "FindLatestPrice")
	})

	t.Run("missing price for target means no offer", func(t *testing.T) {
		service, mockRepo := setupRecommendationServiceTest()
		mockRepo.On("FindLatestPrice", mock.Anything, types.RoomSuite, types.TierNone).Return(0.0, types.ErrNotFound).Once()

		offer, err := service.ComputeUpsell(ctx, types.RoomDeluxe, types.TierNone, 150.0)
		require.NoError(t, err)
		assert.Nil(t, offer)
	})

	t.Run("never returns a non-positive delta", func(t *testing.T) {
		service, mockRepo := setupRecommendationServiceTest()
		mockRepo.On("FindLatestPrice", mock.Anything, types.RoomSuite, types.TierGold).Return(150.0, nil).Once()

		offer, err := service.ComputeUpsell(ctx, types.RoomDeluxe, types.TierGold, 150.0)
		require.NoError(t, err)
		assert.Nil(t, offer)

		mockRepo.On("FindLatestPrice", mock.Anything, types.RoomSuite, types.TierGold).Return(120.0, nil).Once()
		offer, err = service.ComputeUpsell(ctx, types.RoomDeluxe, types.TierGold, 150.0)
		require.NoError(t, err)
		assert.Nil(t, offer)
	})

	t.Run("price query error is wrapped", func(t *testing.T) {
		service, mockRepo := setupRecommendationServiceTest()
		repoErr := errors.New("db down")
		mockRepo.On("FindLatestPrice", mock.Anything, types.RoomSuite, types.TierGold).Return(0.0, repoErr).Once()

		_, err := service.ComputeUpsell(ctx, types.RoomDeluxe, types.TierGold, 150.0)
		require.Error(t, err)
		assert.ErrorIs(t, err, repoErr)
	})
}
