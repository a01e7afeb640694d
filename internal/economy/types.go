// Package economy is the turn-based state economy: resource deposits, improvements,
// technology-gated visibility, strategic stockpiles, luxury amenities, yields and
// timed trade deals.
package economy

import (
	"fmt"
	"sort"

	"github.com/talgya/realm-economy/internal/catalog"
	"github.com/talgya/realm-economy/internal/world"
)

// World is the read-only grid the economy runs on.
type World interface {
	TileCount() int
	Tile(id int) (world.Tile, bool)
	States() []world.State
	HasAdjacentSettlement(tileID int) bool
}

// Result reports the outcome of an on-demand action. Rejected actions are
// results, not errors.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func ok(format string, args ...any) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...any) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// DealResult is the outcome of CreateTradeDeal. Deal is nil on failure.
type DealResult struct {
	Result
	Deal *TradeDeal `json:"deal,omitempty"`
}

// Deposit is a resource occurrence on one tile.
type Deposit struct {
	ResourceID    string `json:"resource_id"`
	Improved      bool   `json:"improved"`
	ImprovementID string `json:"improvement_id,omitempty"` // empty until improved
}

// TradeDeal shares a resource from one state with another.
type TradeDeal struct {
	ID          string `json:"id"`
	From        int    `json:"from_state"`
	To          int    `json:"to_state"`
	ResourceID  string `json:"resource_id"`
	CreatedTurn int    `json:"created_turn"`
	ExpiryTurn  *int   `json:"expiry_turn"` // nil = perpetual
}

// Perpetual reports whether the deal never expires.
func (d TradeDeal) Perpetual() bool {
	return d.ExpiryTurn == nil
}

// expiredAt reports whether the deal is gone once the clock reaches turn.
func (d TradeDeal) expiredAt(turn int) bool {
	return d.ExpiryTurn != nil && *d.ExpiryTurn <= turn
}

// StateEconomy is the mutable economic record of one political entity.
type StateEconomy struct {
	StateID    int             `json:"state_id"`
	KnownTech  map[string]bool `json:"known_tech"`
	Stockpiles map[string]int  `json:"stockpiles"`
	Caps       map[string]int  `json:"caps"`

	// Luxuries held through improved deposits. Grows, never shrinks.
	Luxuries map[string]bool `json:"luxuries"`
	// Luxuries received through active trade deals, rebuilt every turn.
	TradedLuxuries map[string]bool `json:"traded_luxuries"`

	Yields    catalog.Yield `json:"yields"`
	Amenities int           `json:"amenities"`
}

func newStateEconomy(cat *catalog.Catalog, stateID int) *StateEconomy {
	se := &StateEconomy{
		StateID:        stateID,
		KnownTech:      make(map[string]bool),
		Stockpiles:     make(map[string]int),
		Caps:           make(map[string]int),
		Luxuries:       make(map[string]bool),
		TradedLuxuries: make(map[string]bool),
	}
	for _, t := range cat.BaselineTechs {
		se.KnownTech[t] = true
	}
	for _, r := range cat.ResourcesIn(catalog.Strategic) {
		se.Stockpiles[r.ID] = 0
		se.Caps[r.ID] = cat.StrategicCap(r)
	}
	return se
}

// OwnsLuxury reports whether the state holds a luxury type by any means.
func (se *StateEconomy) OwnsLuxury(id string) bool {
	return se.Luxuries[id] || se.TradedLuxuries[id]
}

// OwnedLuxuries returns the unique owned luxury ids, sorted.
func (se *StateEconomy) OwnedLuxuries() []string {
	set := make(map[string]bool, len(se.Luxuries)+len(se.TradedLuxuries))
	for id := range se.Luxuries {
		set[id] = true
	}
	for id := range se.TradedLuxuries {
		set[id] = true
	}
	return sortedKeys(set)
}

// clone returns a deep copy safe to hand to callers.
func (se *StateEconomy) clone() StateEconomy {
	out := *se
	out.KnownTech = copyMap(se.KnownTech)
	out.Stockpiles = copyMap(se.Stockpiles)
	out.Caps = copyMap(se.Caps)
	out.Luxuries = copyMap(se.Luxuries)
	out.TradedLuxuries = copyMap(se.TradedLuxuries)
	return out
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
