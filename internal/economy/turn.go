package economy

import (
	"sync"

	"github.com/talgya/realm-economy/internal/catalog"
)

// Amenity bonus applied to gold and production per amenity point.
const amenityYieldBonus = 0.02

// Baseline yield of every owned land tile.
var baselineTileYield = catalog.Yield{Food: 1, Production: 0.5}

// ProcessTurn advances the economy by one turn. The turn counter moves first;
// then every state accrues income, recomputes amenities and recomputes yields,
// and finally trade deals are maintained once for the whole world.
func (e *Economy) ProcessTurn() TurnSummary {
	if !e.initialized {
		return TurnSummary{Turn: e.turn, States: map[int]StateSummary{}}
	}
	e.turn++

	// States never read each other here, so they can run in parallel; deal
	// maintenance waits for all of them.
	if e.opts.workers > 1 && len(e.order) > 1 {
		sem := make(chan struct{}, e.opts.workers)
		var wg sync.WaitGroup
		for _, id := range e.order {
			wg.Add(1)
			sem <- struct{}{}
			go func(se *StateEconomy) {
				defer wg.Done()
				e.processState(se)
				<-sem
			}(e.states[id])
		}
		wg.Wait()
	} else {
		for _, id := range e.order {
			e.processState(e.states[id])
		}
	}

	expired := e.processTradeDeals()

	summary := e.TurnSummary()
	summary.Expired = expired
	return summary
}

func (e *Economy) processState(se *StateEconomy) {
	e.processIncome(se)
	e.computeAmenities(se)
	e.computeYields(se)
}

// processIncome adds strategic income to the stockpiles, clamped to [0, cap],
// and records every improved luxury deposit as owned.
func (e *Economy) processIncome(se *StateEconomy) {
	income := make(map[string]int)
	for _, tileID := range e.ownedDeposits[se.StateID] {
		d := e.deposits[tileID]
		if !d.Improved {
			continue
		}
		def, found := e.cat.Resource(d.ResourceID)
		if !found {
			continue
		}
		switch def.Category {
		case catalog.Strategic:
			income[def.ID] += def.PerTurnIncome
		case catalog.Luxury:
			se.Luxuries[def.ID] = true
		}
	}

	for _, def := range e.cat.ResourcesIn(catalog.Strategic) {
		upkeep := 0
		se.Stockpiles[def.ID] = clamp(se.Stockpiles[def.ID]+income[def.ID]-upkeep, 0, se.Caps[def.ID])
	}
}

// computeAmenities recomputes the amenity total from the owned luxury set.
func (e *Economy) computeAmenities(se *StateEconomy) {
	total := 0
	for _, id := range se.OwnedLuxuries() {
		if def, found := e.cat.Resource(id); found {
			total += e.cat.Amenity(def)
		} else {
			total += e.cat.LuxuryBaseAmenity
		}
	}
	se.Amenities = total
}

// computeYields recomputes the state's yields: a baseline per owned land tile
// plus the tile yield of every improved deposit on one, with gold and
// production scaled by amenities. Water tiles yield nothing.
func (e *Economy) computeYields(se *StateEconomy) {
	var y catalog.Yield
	for _, tileID := range e.ownedLand[se.StateID] {
		y = y.Add(baselineTileYield)
		d, has := e.deposits[tileID]
		if !has || !d.Improved {
			continue
		}
		if def, found := e.cat.Resource(d.ResourceID); found {
			y = y.Add(def.TileYield)
		}
	}

	bonus := AmenityMultiplier(se.Amenities)
	y.Gold *= bonus
	y.Production *= bonus
	se.Yields = y
}

// AmenityMultiplier is the gold and production multiplier for an amenity total.
func AmenityMultiplier(amenities int) float64 {
	return 1 + float64(amenities)*amenityYieldBonus
}
