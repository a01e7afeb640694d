package economy

import (
	"sort"

	"github.com/talgya/realm-economy/internal/catalog"
)

// Build constructs an improvement on the deposit at a tile. Income and yield
// only flow from improved deposits. Building the required improvement on an
// already improved deposit succeeds without changing anything.
func (e *Economy) Build(tileID int, improvementID string) Result {
	d, found := e.deposits[tileID]
	if !found {
		return fail("No resource at tile %d", tileID)
	}
	def, found := e.cat.Resource(d.ResourceID)
	if !found {
		return fail("Unknown resource %s", d.ResourceID)
	}
	if def.ImprovementRequired != "" && def.ImprovementRequired != improvementID {
		return fail("%s requires %s", def.Name, def.ImprovementRequired)
	}
	imp, found := e.cat.Improvement(improvementID)
	if !found {
		return fail("Unknown improvement %s", improvementID)
	}
	if !imp.Accepts(d.ResourceID) {
		return fail("%s cannot be built on %s", imp.Name, def.Name)
	}
	if d.Improved {
		return ok("%s already built", imp.Name)
	}

	d.Improved = true
	d.ImprovementID = improvementID
	return ok("Built %s", imp.Name)
}

// UnlockTech teaches a state a technology and reveals the resources it
// uncovers to the whole world. Unlocking a known technology is harmless.
func (e *Economy) UnlockTech(stateID int, techID string) Result {
	se, found := e.states[stateID]
	if !found {
		return fail("State %d not found", stateID)
	}
	tech, found := e.cat.Tech(techID)
	if !found {
		return fail("Unknown technology %s", techID)
	}

	se.KnownTech[techID] = true
	for _, r := range tech.Reveals {
		e.revealed[r] = true
	}
	return ok("Unlocked %s", tech.Name)
}

// CanSee reports whether a state can see a resource type. Resources without a
// reveal technology are visible to everyone.
func (e *Economy) CanSee(stateID int, resourceID string) bool {
	def, found := e.cat.Resource(resourceID)
	if !found {
		return false
	}
	if def.RevealTech == "" {
		return true
	}
	se, found := e.states[stateID]
	if !found {
		return false
	}
	return se.KnownTech[def.RevealTech]
}

// Revealed returns the world-wide revealed resource ids in catalog order.
func (e *Economy) Revealed() []string {
	var out []string
	for _, r := range e.cat.Resources {
		if e.revealed[r.ID] {
			out = append(out, r.ID)
		}
	}
	return out
}

// SpendStrategic deducts strategic resources from a state's stockpiles. Either
// every cost is paid or nothing is.
func (e *Economy) SpendStrategic(stateID int, costs map[string]int) Result {
	se, found := e.states[stateID]
	if !found {
		return fail("State %d not found", stateID)
	}

	ids := make([]string, 0, len(costs))
	for id := range costs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		amount := costs[id]
		def, found := e.cat.Resource(id)
		if !found || def.Category != catalog.Strategic {
			return fail("%s is not a strategic resource", id)
		}
		if amount < 0 {
			return fail("Negative cost for %s", id)
		}
		if have := se.Stockpiles[id]; have < amount {
			return fail("Insufficient %s: have %d, need %d", id, have, amount)
		}
	}
	for _, id := range ids {
		se.Stockpiles[id] -= costs[id]
	}
	return ok("Resources spent")
}

// RecruitUnit pays a unit's strategic cost.
func (e *Economy) RecruitUnit(stateID int, unitID string) Result {
	unit, found := e.cat.Unit(unitID)
	if !found {
		return fail("Unknown unit %s", unitID)
	}
	res := e.SpendStrategic(stateID, unit.Strategic)
	if !res.Success {
		return res
	}
	return ok("Recruited %s", unitID)
}
