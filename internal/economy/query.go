package economy

import (
	"github.com/talgya/realm-economy/internal/catalog"
)

// TurnSummary is the per-turn view of every state.
type TurnSummary struct {
	Turn    int                  `json:"turn"`
	States  map[int]StateSummary `json:"states"`
	Expired []TradeDeal          `json:"expired,omitempty"`
}

// StateSummary is a read-only digest of one state economy.
type StateSummary struct {
	StateID   int              `json:"state_id"`
	StateName string           `json:"state_name"`
	Turn      int              `json:"turn"`
	Strategic []StrategicEntry `json:"strategic"`
	Luxury    LuxurySummary    `json:"luxury"`
	Bonus     []BonusEntry     `json:"bonus"`
	Yields    catalog.Yield    `json:"yields"`
	Amenities int              `json:"amenities"`
}

// StrategicEntry is one strategic resource line of a state summary.
type StrategicEntry struct {
	ResourceID string `json:"resource_id"`
	Name       string `json:"name"`
	Income     int    `json:"income"`
	Upkeep     int    `json:"upkeep"`
	Stockpile  int    `json:"stockpile"`
	Cap        int    `json:"cap"`
	Sources    []int  `json:"sources"` // improved tiles producing it
}

// LuxurySummary lists luxuries held through improved deposits. Duplicates are
// the surplus beyond the first deposit of a type, available for trade. Owned
// is the full owned set, traded luxuries included.
type LuxurySummary struct {
	Unique     []LuxuryEntry    `json:"unique"`
	Duplicates []DuplicateEntry `json:"duplicates"`
	Owned      []string         `json:"owned"`
}

type LuxuryEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Amenity int    `json:"amenity"`
}

type DuplicateEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// BonusEntry counts improved deposits of one bonus resource.
type BonusEntry struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Count int           `json:"count"`
	Yield catalog.Yield `json:"yield"`
}

// VisibleDeposit is a deposit as seen by one state.
type VisibleDeposit struct {
	TileID        int    `json:"tile_id"`
	ResourceID    string `json:"resource_id"`
	Improved      bool   `json:"improved"`
	ImprovementID string `json:"improvement_id,omitempty"`
}

// Turn returns the current turn number.
func (e *Economy) Turn() int {
	return e.turn
}

// StateIDs returns the ids of every state economy, ascending.
func (e *Economy) StateIDs() []int {
	return append([]int(nil), e.order...)
}

// StateName returns the display name of a state.
func (e *Economy) StateName(stateID int) string {
	return e.names[stateID]
}

// Deposit returns the deposit at a tile.
func (e *Economy) Deposit(tileID int) (Deposit, bool) {
	d, found := e.deposits[tileID]
	if !found {
		return Deposit{}, false
	}
	return *d, true
}

// DepositCount returns the number of deposits on the map.
func (e *Economy) DepositCount() int {
	return len(e.deposits)
}

// StateEconomy returns a copy of a state's economic record.
func (e *Economy) StateEconomy(stateID int) (StateEconomy, bool) {
	se, found := e.states[stateID]
	if !found {
		return StateEconomy{}, false
	}
	return se.clone(), true
}

// VisibleResources returns every deposit whose resource the state can see,
// in tile order.
func (e *Economy) VisibleResources(stateID int) []VisibleDeposit {
	var out []VisibleDeposit
	for tileID := 0; tileID < e.tileCount(); tileID++ {
		d, found := e.deposits[tileID]
		if !found || !e.CanSee(stateID, d.ResourceID) {
			continue
		}
		out = append(out, VisibleDeposit{
			TileID:        tileID,
			ResourceID:    d.ResourceID,
			Improved:      d.Improved,
			ImprovementID: d.ImprovementID,
		})
	}
	return out
}

func (e *Economy) tileCount() int {
	if e.world == nil {
		return 0
	}
	return e.world.TileCount()
}

// StateSummary digests one state's strategic, luxury and bonus holdings.
func (e *Economy) StateSummary(stateID int) (StateSummary, bool) {
	se, found := e.states[stateID]
	if !found {
		return StateSummary{}, false
	}

	sum := StateSummary{
		StateID:   stateID,
		StateName: e.names[stateID],
		Turn:      e.turn,
		Yields:    se.Yields,
		Amenities: se.Amenities,
	}

	strategic := make(map[string]*StrategicEntry)
	for _, def := range e.cat.ResourcesIn(catalog.Strategic) {
		sum.Strategic = append(sum.Strategic, StrategicEntry{
			ResourceID: def.ID,
			Name:       def.Name,
			Stockpile:  se.Stockpiles[def.ID],
			Cap:        se.Caps[def.ID],
			Sources:    []int{},
		})
	}
	for i := range sum.Strategic {
		strategic[sum.Strategic[i].ResourceID] = &sum.Strategic[i]
	}

	luxuryCounts := make(map[string]int)
	bonusCounts := make(map[string]int)
	for _, tileID := range e.ownedDeposits[stateID] {
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
			entry := strategic[def.ID]
			entry.Income += def.PerTurnIncome
			entry.Sources = append(entry.Sources, tileID)
		case catalog.Luxury:
			luxuryCounts[def.ID]++
		case catalog.Bonus:
			bonusCounts[def.ID]++
		}
	}

	sum.Luxury.Unique = []LuxuryEntry{}
	sum.Luxury.Duplicates = []DuplicateEntry{}
	sum.Bonus = []BonusEntry{}
	for _, def := range e.cat.Resources {
		switch def.Category {
		case catalog.Luxury:
			n := luxuryCounts[def.ID]
			if n == 0 {
				continue
			}
			sum.Luxury.Unique = append(sum.Luxury.Unique, LuxuryEntry{ID: def.ID, Name: def.Name, Amenity: e.cat.Amenity(def)})
			if n > 1 {
				sum.Luxury.Duplicates = append(sum.Luxury.Duplicates, DuplicateEntry{ID: def.ID, Name: def.Name, Count: n - 1})
			}
		case catalog.Bonus:
			if n := bonusCounts[def.ID]; n > 0 {
				sum.Bonus = append(sum.Bonus, BonusEntry{ID: def.ID, Name: def.Name, Count: n, Yield: def.TileYield})
			}
		}
	}
	sum.Luxury.Owned = se.OwnedLuxuries()

	return sum, true
}

// TurnSummary returns the summary of every state at the current turn.
func (e *Economy) TurnSummary() TurnSummary {
	out := TurnSummary{Turn: e.turn, States: make(map[int]StateSummary, len(e.order))}
	for _, id := range e.order {
		if s, found := e.StateSummary(id); found {
			out.States[id] = s
		}
	}
	return out
}
