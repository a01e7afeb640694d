package economy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/realm-economy/internal/catalog"
)

// SnapshotVersion is the persisted format version.
const SnapshotVersion = 1

//go:embed snapshot.schema.json
var snapshotSchemaJSON string

var snapshotSchema = jsonschema.MustCompileString("snapshot.schema.json", snapshotSchemaJSON)

// Snapshot is the persisted shape of an economy. Yields and amenities are not
// part of it; they are recomputed on restore.
type Snapshot struct {
	Version  int             `json:"version"`
	Seed     int64           `json:"seed"`
	Turn     int             `json:"turn"`
	Deposits []DepositRecord `json:"deposits"`
	States   []StateRecord   `json:"states"`
	Deals    []TradeDeal     `json:"deals"`
	Revealed []string        `json:"revealed,omitempty"`
}

// DepositRecord is a deposit keyed by its tile.
type DepositRecord struct {
	Tile          int    `json:"tile"`
	ResourceID    string `json:"resource_id"`
	Improved      bool   `json:"improved"`
	ImprovementID string `json:"improvement_id,omitempty"`
}

// StateRecord is the persisted part of a state economy.
type StateRecord struct {
	StateID        int            `json:"state_id"`
	KnownTech      []string       `json:"known_tech"`
	Stockpiles     map[string]int `json:"stockpiles"`
	Caps           map[string]int `json:"caps"`
	Luxuries       []string       `json:"luxuries,omitempty"`
	TradedLuxuries []string       `json:"traded_luxuries,omitempty"`
}

// Export captures the persisted state. Records are ordered by tile and state
// id so equal economies export identically.
func (e *Economy) Export() Snapshot {
	snap := Snapshot{
		Version:  SnapshotVersion,
		Seed:     e.seed,
		Turn:     e.turn,
		Deposits: []DepositRecord{},
		States:   []StateRecord{},
		Deals:    e.ActiveDeals(),
		Revealed: e.Revealed(),
	}

	tiles := make([]int, 0, len(e.deposits))
	for id := range e.deposits {
		tiles = append(tiles, id)
	}
	sort.Ints(tiles)
	for _, id := range tiles {
		d := e.deposits[id]
		snap.Deposits = append(snap.Deposits, DepositRecord{
			Tile:          id,
			ResourceID:    d.ResourceID,
			Improved:      d.Improved,
			ImprovementID: d.ImprovementID,
		})
	}

	for _, id := range e.order {
		se := e.states[id]
		snap.States = append(snap.States, StateRecord{
			StateID:        id,
			KnownTech:      sortedKeys(se.KnownTech),
			Stockpiles:     copyMap(se.Stockpiles),
			Caps:           copyMap(se.Caps),
			Luxuries:       sortedKeys(se.Luxuries),
			TradedLuxuries: sortedKeys(se.TradedLuxuries),
		})
	}
	return snap
}

// ExportJSON encodes Export as JSON.
func (e *Economy) ExportJSON() ([]byte, error) {
	return json.Marshal(e.Export())
}

// Load restores an economy from a JSON snapshot. Malformed or inconsistent
// input is rejected as a whole: Load returns false and the economy is left
// exactly as it was.
func (e *Economy) Load(w World, raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		slog.Warn("economy snapshot rejected", "error", err)
		return false
	}
	if err := snapshotSchema.Validate(doc); err != nil {
		slog.Warn("economy snapshot rejected", "error", err)
		return false
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		slog.Warn("economy snapshot rejected", "error", err)
		return false
	}
	return e.Restore(w, snap)
}

// Restore applies a snapshot over a world. It validates every reference first
// and applies nothing when any check fails. States of the world missing from
// the snapshot start fresh.
func (e *Economy) Restore(w World, snap Snapshot) bool {
	if w == nil {
		return false
	}
	if err := e.checkSnapshot(w, snap); err != nil {
		slog.Warn("economy snapshot rejected", "error", err)
		return false
	}

	deposits := make(map[int]*Deposit, len(snap.Deposits))
	for _, r := range snap.Deposits {
		deposits[r.Tile] = &Deposit{ResourceID: r.ResourceID, Improved: r.Improved, ImprovementID: r.ImprovementID}
	}

	records := make(map[int]StateRecord, len(snap.States))
	for _, r := range snap.States {
		records[r.StateID] = r
	}
	states := make(map[int]*StateEconomy)
	names := make(map[int]string)
	for _, s := range w.States() {
		if s.ID == 0 || s.Removed {
			continue
		}
		se := newStateEconomy(e.cat, s.ID)
		if r, found := records[s.ID]; found {
			se.KnownTech = toSet(r.KnownTech)
			for id, v := range r.Caps {
				se.Caps[id] = v
			}
			for id, v := range r.Stockpiles {
				se.Stockpiles[id] = clamp(v, 0, se.Caps[id])
			}
			se.Luxuries = toSet(r.Luxuries)
			se.TradedLuxuries = toSet(r.TradedLuxuries)
		}
		states[s.ID] = se
		names[s.ID] = s.Name
	}

	deals := make([]*TradeDeal, 0, len(snap.Deals))
	for _, d := range snap.Deals {
		deals = append(deals, &d)
	}

	e.world = w
	e.seed = snap.Seed
	e.turn = snap.Turn
	e.deposits = deposits
	e.states = states
	e.names = names
	e.deals = deals
	e.revealed = toSet(snap.Revealed)
	e.reindex()
	for _, id := range e.order {
		e.computeAmenities(e.states[id])
		e.computeYields(e.states[id])
	}
	e.initialized = true

	slog.Info("economy restored",
		"turn", e.turn,
		"deposits", len(e.deposits),
		"states", len(e.states),
		"deals", len(e.deals),
	)
	return true
}

// checkSnapshot verifies that every id in the snapshot resolves against the
// world and the catalog.
func (e *Economy) checkSnapshot(w World, snap Snapshot) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if snap.Version != SnapshotVersion {
		add("unsupported version %d", snap.Version)
	}
	if snap.Turn < 0 {
		add("negative turn %d", snap.Turn)
	}

	seenTiles := make(map[int]bool)
	for _, r := range snap.Deposits {
		if r.Tile < 0 || r.Tile >= w.TileCount() {
			add("deposit on unknown tile %d", r.Tile)
		}
		if seenTiles[r.Tile] {
			add("tile %d holds two deposits", r.Tile)
		}
		seenTiles[r.Tile] = true
		def, found := e.cat.Resource(r.ResourceID)
		if !found {
			add("tile %d: unknown resource %s", r.Tile, r.ResourceID)
			continue
		}
		switch {
		case r.Improved && r.ImprovementID != def.ImprovementRequired:
			add("tile %d: %s improved with %q", r.Tile, r.ResourceID, r.ImprovementID)
		case !r.Improved && r.ImprovementID != "":
			add("tile %d: improvement without improved flag", r.Tile)
		}
	}

	live := make(map[int]bool)
	for _, s := range w.States() {
		if s.ID != 0 && !s.Removed {
			live[s.ID] = true
		}
	}
	seenStates := make(map[int]bool)
	for _, r := range snap.States {
		if !live[r.StateID] {
			add("unknown state %d", r.StateID)
		}
		if seenStates[r.StateID] {
			add("state %d listed twice", r.StateID)
		}
		seenStates[r.StateID] = true
		for _, t := range r.KnownTech {
			if _, found := e.cat.Tech(t); !found {
				add("state %d: unknown technology %s", r.StateID, t)
			}
		}
		for id, v := range r.Stockpiles {
			if !e.isStrategic(id) {
				add("state %d: stockpile of non-strategic %s", r.StateID, id)
			}
			if v < 0 {
				add("state %d: negative %s stockpile", r.StateID, id)
			}
		}
		for id := range r.Caps {
			if !e.isStrategic(id) {
				add("state %d: cap for non-strategic %s", r.StateID, id)
			}
		}
		for _, id := range append(append([]string(nil), r.Luxuries...), r.TradedLuxuries...) {
			if !e.isLuxury(id) {
				add("state %d: %s is not a luxury", r.StateID, id)
			}
		}
	}

	seenDeals := make(map[string]bool)
	for _, d := range snap.Deals {
		if seenDeals[d.ID] {
			add("deal %s listed twice", d.ID)
		}
		seenDeals[d.ID] = true
		if !live[d.From] || !live[d.To] {
			add("deal %s: unknown state", d.ID)
		}
		if _, found := e.cat.Resource(d.ResourceID); !found {
			add("deal %s: unknown resource %s", d.ID, d.ResourceID)
		}
	}

	for _, id := range snap.Revealed {
		if _, found := e.cat.Resource(id); !found {
			add("unknown revealed resource %s", id)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid snapshot: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (e *Economy) isStrategic(id string) bool {
	def, found := e.cat.Resource(id)
	return found && def.Category == catalog.Strategic
}

func (e *Economy) isLuxury(id string) bool {
	def, found := e.cat.Resource(id)
	return found && def.Category == catalog.Luxury
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
