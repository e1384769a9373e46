package types

import (
	"fmt"
	"time"
)

// RoomType is a fixed, ordered set of room categories. The order matters:
// upsell offers always target the next room up.
type RoomType string

const (
	RoomStandard       RoomType = "Standard"
	RoomDeluxe         RoomType = "Deluxe"
	RoomSuite          RoomType = "Suite"
	RoomExecutiveSuite RoomType = "Executive Suite"
)

// RoomOrder lists room types from cheapest to most premium.
var RoomOrder = []RoomType{RoomStandard, RoomDeluxe, RoomSuite, RoomExecutiveSuite}

// NextUp returns the room type one tier above r, or false when r is the top
// tier or not a recognized room type.
func (r RoomType) NextUp() (RoomType, bool) {
	for i, room := range RoomOrder {
		if room == r {
			if i+1 < len(RoomOrder) {
				return RoomOrder[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// Valid reports whether r is one of the known room types.
func (r RoomType) Valid() bool {
	for _, room := range RoomOrder {
		if room == r {
			return true
		}
	}
	return false
}

func ParseRoomType(s string) (RoomType, error) {
	r := RoomType(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown room type %q", ErrBadRequest, s)
	}
	return r, nil
}

// LoyaltyTier is the guest's loyalty program level.
type LoyaltyTier string

const (
	TierNone     LoyaltyTier = "None"
	TierBronze   LoyaltyTier = "Bronze"
	TierSilver   LoyaltyTier = "Silver"
	TierGold     LoyaltyTier = "Gold"
	TierPlatinum LoyaltyTier = "Platinum"
)

var loyaltyTiers = []LoyaltyTier{TierNone, TierBronze, TierSilver, TierGold, TierPlatinum}

func (t LoyaltyTier) Valid() bool {
	for _, tier := range loyaltyTiers {
		if tier == t {
			return true
		}
	}
	return false
}

func ParseLoyaltyTier(s string) (LoyaltyTier, error) {
	t := LoyaltyTier(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown loyalty tier %q", ErrBadRequest, s)
	}
	return t, nil
}

// TravelGoal is the guest's stated reason for the trip.
type TravelGoal string

const (
	GoalRelax   TravelGoal = "relax"
	GoalExplore TravelGoal = "explore"
	GoalWork    TravelGoal = "work"
)

var travelGoals = []TravelGoal{GoalRelax, GoalExplore, GoalWork}

func (g TravelGoal) Valid() bool {
	for _, goal := range travelGoals {
		if goal == g {
			return true
		}
	}
	return false
}

func ParseTravelGoal(s string) (TravelGoal, error) {
	g := TravelGoal(s)
	if !g.Valid() {
		return "", fmt.Errorf("%w: unknown travel goal %q", ErrBadRequest, s)
	}
	return g, nil
}

// BookingRecord is one historical loyalty booking. Records are created only
// during bulk import and never mutated afterwards.
type BookingRecord struct {
	GuestName       string      `json:"guest_name"`
	Goal            TravelGoal  `json:"goal"`
	LoyaltyTier     LoyaltyTier `json:"loyalty_tier"`
	PreferredRoom   RoomType    `json:"preferred_room"`
	BookingDate     time.Time   `json:"booking_date"`
	BasePrice       float64     `json:"base_price"`
	LoyaltyDiscount float64     `json:"loyalty_discount"`
	FinalPrice      float64     `json:"final_price"`
}
