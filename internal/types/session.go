package types

import (
	"time"

	"github.com/google/uuid"
)

// Stage is one step of the guest session state machine.
type Stage string

const (
	StageCollectingInput     Stage = "collecting_input"
	StageRecommendationReady Stage = "recommendation_ready"
	StageChoiceMade          Stage = "choice_made"
	StageLuckResolved        Stage = "luck_resolved"
	StageFinalized           Stage = "finalized"
)

// stageRank orders stages so guards can ask "has this stage been reached".
var stageRank = map[Stage]int{
	StageCollectingInput:     0,
	StageRecommendationReady: 1,
	StageChoiceMade:          2,
	StageLuckResolved:        3,
	StageFinalized:           4,
}

// Reached reports whether the session has advanced to at least stage other.
func (s Stage) Reached(other Stage) bool {
	return stageRank[s] >= stageRank[other]
}

// GuestInputs are captured once per session and are immutable after a
// recommendation has been requested.
type GuestInputs struct {
	GuestName     string      `json:"guest_name"`
	Goal          TravelGoal  `json:"goal"`
	LoyaltyTier   LoyaltyTier `json:"loyalty_tier"`
	PreferredRoom RoomType    `json:"preferred_room"`
}

// RecommendationMode tags how a recommendation result was produced.
type RecommendationMode string

const (
	ModeExact    RecommendationMode = "exact"
	ModeFallback RecommendationMode = "fallback"
)

// RecommendationResult is either a single exact match or up to three fallback
// candidates ranked most recent first. Computed once per session and cached
// until reset.
type RecommendationResult struct {
	Mode    RecommendationMode `json:"mode"`
	Records []BookingRecord    `json:"records"`
}

// UpsellOffer proposes the room one tier above the recommended room. Offers
// are only built when the price delta is strictly positive.
type UpsellOffer struct {
	TargetRoom RoomType `json:"target_room"`
	Price      float64  `json:"price"`
	PriceDelta float64  `json:"price_delta"`
}

// Explanation is the outcome of one explanation-provider call. Fallback marks
// locally synthesized text so callers never have to sniff the content.
type Explanation struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

// ExplanationRequest identifies one explanation; it doubles as the
// memoization key for the provider.
type ExplanationRequest struct {
	Goal       TravelGoal  `json:"goal"`
	Room       RoomType    `json:"room"`
	Tier       LoyaltyTier `json:"tier"`
	UpsellRoom RoomType    `json:"upsell_room,omitempty"`
	PriceDelta float64     `json:"price_delta,omitempty"`
}

// RoomChoice is the guest's selection at the choice stage. Upgrade applies to
// the exact-match branch; Option is the 1-based candidate index on the
// fallback branch.
type RoomChoice struct {
	Upgrade bool `json:"upgrade"`
	Option  int  `json:"option"`
}

// SessionState is the mutable state for one guest visit. It is owned by a
// single session manager; every field below survives re-renders until reset.
//
// Invariants: FinalPrice <= OriginalPrice, ChosenRoom is always the
// recommended or the upsell room, and SecretNumber is drawn once per session.
type SessionState struct {
	ID    uuid.UUID `json:"id"`
	Stage Stage     `json:"stage"`

	Inputs         GuestInputs           `json:"inputs"`
	Recommendation *RecommendationResult `json:"recommendation,omitempty"`
	Upsell         *UpsellOffer          `json:"upsell,omitempty"`

	// Explanations are cached per candidate (aligned with
	// Recommendation.Records) so re-rendering never re-calls the provider.
	Explanations      []Explanation `json:"explanations,omitempty"`
	UpsellExplanation *Explanation  `json:"upsell_explanation,omitempty"`

	ChosenRoom    RoomType `json:"chosen_room,omitempty"`
	FinalPrice    float64  `json:"final_price"`
	OriginalPrice float64  `json:"original_price"`

	SecretNumber int  `json:"-"`
	UsedLuck     bool `json:"used_luck"`
	GotLucky     bool `json:"got_lucky"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
