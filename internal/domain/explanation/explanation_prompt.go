package explanation

import (
	"fmt"

	"github.com/conciergelab/concierge-api/internal/types"
)

func buildExplanationPrompt(req types.ExplanationRequest) string {
	if req.UpsellRoom != "" {
		return fmt.Sprintf(
			"A guest with goal '%s' and loyalty tier '%s' is being recommended a '%s' room. "+
				"Explain why this is a good match. Also suggest what additional experience they could get by upgrading "+
				"to a '%s' room for $%.2f more.",
			req.Goal, req.Tier, req.Room, req.UpsellRoom, req.PriceDelta,
		)
	}
	return fmt.Sprintf(
		"A guest with goal '%s' and loyalty tier '%s' is being recommended a '%s' room. "+
			"Explain why this room suits their needs.",
		req.Goal, req.Tier, req.Room,
	)
}

// fallbackExplanation synthesizes a local sentence when the remote service is
// unavailable. It references the same room/tier/goal (and upsell delta) the
// prompt would have, so the guest always sees a usable explanation.
func fallbackExplanation(req types.ExplanationRequest) string {
	if req.UpsellRoom != "" {
		return fmt.Sprintf(
			"Upgrading from %s to %s gives you more comfort and amenities "+
				"for just a bit more money ($%.2f extra). This upgrade is recommended "+
				"for guests looking for a premium experience.",
			req.Room, req.UpsellRoom, req.PriceDelta,
		)
	}
	return fmt.Sprintf(
		"The %s room is a great choice for guests with goal '%s' "+
			"and loyalty tier '%s', offering comfort and value.",
		req.Room, req.Goal, req.Tier,
	)
}
