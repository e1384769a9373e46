package presenter

import (
	"github.com/conciergelab/concierge-api/internal/types"
)

// SessionView is the guest-facing projection of the session state. The
// secret number never leaves the server.
type SessionView struct {
	ID    string `json:"id"`
	Stage string `json:"stage"`

	GuestName     string `json:"guest_name,omitempty"`
	Goal          string `json:"goal,omitempty"`
	LoyaltyTier   string `json:"loyalty_tier,omitempty"`
	PreferredRoom string `json:"preferred_room,omitempty"`

	Mode       string          `json:"mode,omitempty"`
	Candidates []CandidateView `json:"candidates,omitempty"`
	Upsell     *UpsellView     `json:"upsell,omitempty"`

	ChosenRoom    string  `json:"chosen_room,omitempty"`
	FinalPrice    float64 `json:"final_price"`
	OriginalPrice float64 `json:"original_price"`

	UsedLuck bool `json:"used_luck"`
	GotLucky bool `json:"got_lucky"`
}

// CandidateView is one recommended room with its explanation.
type CandidateView struct {
	Room                string  `json:"room"`
	Tier                string  `json:"tier"`
	Price               float64 `json:"price"`
	LoyaltyDiscount     float64 `json:"loyalty_discount"`
	Explanation         string  `json:"explanation,omitempty"`
	ExplanationFallback bool    `json:"explanation_fallback,omitempty"`
}

// UpsellView is the optional upgrade offer attached to an exact match.
type UpsellView struct {
	Room                string  `json:"room"`
	Price               float64 `json:"price"`
	PriceDelta          float64 `json:"price_delta"`
	Explanation         string  `json:"explanation,omitempty"`
	ExplanationFallback bool    `json:"explanation_fallback,omitempty"`
}

func ToSessionView(st *types.SessionState) *SessionView {
	view := &SessionView{
		ID:            st.ID.String(),
		Stage:         string(st.Stage),
		GuestName:     st.Inputs.GuestName,
		Goal:          string(st.Inputs.Goal),
		LoyaltyTier:   string(st.Inputs.LoyaltyTier),
		PreferredRoom: string(st.Inputs.PreferredRoom),
		ChosenRoom:    string(st.ChosenRoom),
		FinalPrice:    st.FinalPrice,
		OriginalPrice: st.OriginalPrice,
		UsedLuck:      st.UsedLuck,
		GotLucky:      st.GotLucky,
	}

	if st.Recommendation != nil {
		view.Mode = string(st.Recommendation.Mode)
		for i, rec := range st.Recommendation.Records {
			candidate := CandidateView{
				Room:            string(rec.PreferredRoom),
				Tier:            string(rec.LoyaltyTier),
				Price:           rec.FinalPrice,
				LoyaltyDiscount: rec.LoyaltyDiscount,
			}
			if i < len(st.Explanations) {
				candidate.Explanation = st.Explanations[i].Text
				candidate.ExplanationFallback = st.Explanations[i].Fallback
			}
			view.Candidates = append(view.Candidates, candidate)
		}
	}

	if st.Upsell != nil {
		upsell := &UpsellView{
			Room:       string(st.Upsell.TargetRoom),
			Price:      st.Upsell.Price,
			PriceDelta: st.Upsell.PriceDelta,
		}
		if st.UpsellExplanation != nil {
			upsell.Explanation = st.UpsellExplanation.Text
			upsell.ExplanationFallback = st.UpsellExplanation.Fallback
		}
		view.Upsell = upsell
	}

	return view
}
