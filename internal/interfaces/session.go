package interfaces

import (
	"time"

	"p2p-ad-bot/internal/types"
)

// Session is one configuration generation: the gateway built from its
// credentials and the offer specs it declares. A Session is never mutated
// after construction; reconfiguration replaces it as a whole.
type Session struct {
	Gateway     VenueGateway
	Specs       []types.OfferSpec
	Interval    time.Duration
	AccountType string
	LoadedAt    time.Time
}

// SpecsFor returns the specs declared for one side, in declaration order.
func (s *Session) SpecsFor(side types.Side) []types.OfferSpec {
	out := make([]types.OfferSpec, 0, len(s.Specs))
	for _, sp := range s.Specs {
		if sp.Side == side {
			out = append(out, sp)
		}
	}
	return out
}
