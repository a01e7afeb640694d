package economy

import (
	"math"

	"github.com/google/uuid"

	"github.com/talgya/realm-economy/internal/catalog"
)

// CreateTradeDeal shares a resource from one state with another for duration
// turns, or forever when duration is nil. Luxury deals require the sender to
// own the luxury. Deals in other categories are recorded but have no effect.
func (e *Economy) CreateTradeDeal(from, to int, resourceID string, duration *int) DealResult {
	sender, found := e.states[from]
	if !found {
		return DealResult{Result: fail("Sender state %d not found", from)}
	}
	if _, found := e.states[to]; !found {
		return DealResult{Result: fail("Recipient state %d not found", to)}
	}
	if from == to {
		return DealResult{Result: fail("A state cannot trade with itself")}
	}
	def, found := e.cat.Resource(resourceID)
	if !found {
		return DealResult{Result: fail("Unknown resource %s", resourceID)}
	}
	if duration != nil && *duration <= 0 {
		return DealResult{Result: fail("Duration must be positive, got %d", *duration)}
	}
	if duration != nil && *duration > math.MaxInt-e.turn {
		return DealResult{Result: fail("Duration %d is too long", *duration)}
	}
	if def.Category == catalog.Luxury && !sender.OwnsLuxury(resourceID) {
		return DealResult{Result: fail("Sender doesn't have %s", def.Name)}
	}

	deal := &TradeDeal{
		ID:          uuid.NewString(),
		From:        from,
		To:          to,
		ResourceID:  resourceID,
		CreatedTurn: e.turn,
	}
	if duration != nil {
		expiry := e.turn + *duration
		deal.ExpiryTurn = &expiry
	}
	e.deals = append(e.deals, deal)

	out := *deal
	return DealResult{Result: ok("Trade deal created"), Deal: &out}
}

// CancelTradeDeal removes an active deal. Its effects stop at the next turn.
func (e *Economy) CancelTradeDeal(id string) Result {
	for i, d := range e.deals {
		if d.ID == id {
			e.deals = append(e.deals[:i], e.deals[i+1:]...)
			return ok("Trade deal cancelled")
		}
	}
	return fail("Trade deal %s not found", id)
}

// ActiveDeals returns copies of the deals currently in force, oldest first.
func (e *Economy) ActiveDeals() []TradeDeal {
	out := make([]TradeDeal, 0, len(e.deals))
	for _, d := range e.deals {
		out = append(out, *d)
	}
	return out
}

// processTradeDeals drops expired deals and grants each recipient the luxuries
// of the deals still in force. Runs once after every state has been updated.
func (e *Economy) processTradeDeals() []TradeDeal {
	var expired []TradeDeal
	active := e.deals[:0]
	for _, d := range e.deals {
		if d.expiredAt(e.turn) {
			expired = append(expired, *d)
			continue
		}
		active = append(active, d)
	}
	for i := len(active); i < len(e.deals); i++ {
		e.deals[i] = nil
	}
	e.deals = active

	for _, se := range e.states {
		clear(se.TradedLuxuries)
	}
	for _, d := range e.deals {
		if _, found := e.states[d.From]; !found {
			continue
		}
		recipient, found := e.states[d.To]
		if !found {
			continue
		}
		def, found := e.cat.Resource(d.ResourceID)
		if !found || def.Category != catalog.Luxury {
			continue
		}
		recipient.TradedLuxuries[d.ResourceID] = true
	}
	return expired
}
