// Simulation ties the world grid and the state economies together and runs
// them turn by turn.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/realm-economy/internal/catalog"
	"github.com/talgya/realm-economy/internal/economy"
	"github.com/talgya/realm-economy/internal/world"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// Simulation holds the complete world state. All access goes through its
// methods, which serialize readers and writers.
type Simulation struct {
	mu sync.RWMutex

	World *world.Grid
	Econ  *economy.Economy

	events      []Event // recent events, oldest first
	unsaved     []Event // events not yet handed to persistence
	stats       []TurnStat
	unsavedStat []TurnStat
	statEpoch   int // bumped whenever unsavedStat is discarded
	last        economy.TurnSummary

	// OnTurnProcessed runs after every turn, outside the lock.
	OnTurnProcessed func(economy.TurnSummary)
}

// Event is a notable occurrence in the world.
type Event struct {
	Turn        int            `json:"turn" db:"turn"`
	Description string         `json:"description" db:"description"`
	Category    string         `json:"category" db:"category"` // "turn", "build", "tech", "trade", "military", "admin"
	Meta        map[string]any `json:"meta,omitempty" db:"-"`
}

// TurnStat is one state's output for one turn.
type TurnStat struct {
	Turn       int     `json:"turn" db:"turn"`
	StateID    int     `json:"state_id" db:"state_id"`
	Food       float64 `json:"food" db:"food"`
	Production float64 `json:"production" db:"production"`
	Gold       float64 `json:"gold" db:"gold"`
	Science    float64 `json:"science" db:"science"`
	Amenities  int     `json:"amenities" db:"amenities"`
}

// NewSimulation wraps an initialized economy running on a world grid.
func NewSimulation(g *world.Grid, econ *economy.Economy) *Simulation {
	sim := &Simulation{World: g, Econ: econ}
	sim.last = econ.TurnSummary()
	return sim
}

// CurrentTurn returns the most recently processed turn number.
func (s *Simulation) CurrentTurn() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Econ.Turn()
}

// Catalog returns the rule tables.
func (s *Simulation) Catalog() *catalog.Catalog {
	return s.Econ.Catalog()
}

// ProcessTurn advances the economy one turn, records statistics and expired
// deals, and logs a turn report.
func (s *Simulation) ProcessTurn() economy.TurnSummary {
	s.mu.Lock()
	summary := s.Econ.ProcessTurn()
	s.last = summary

	for _, d := range summary.Expired {
		s.emit(Event{
			Turn:        summary.Turn,
			Description: fmt.Sprintf("Trade of %s from %s to %s has ended", d.ResourceID, s.Econ.StateName(d.From), s.Econ.StateName(d.To)),
			Category:    "trade",
			Meta: map[string]any{
				"deal_id":     d.ID,
				"from_state":  d.From,
				"to_state":    d.To,
				"resource_id": d.ResourceID,
			},
		})
	}
	s.recordStats(summary)
	s.report(summary)
	hook := s.OnTurnProcessed
	s.mu.Unlock()

	if hook != nil {
		hook(summary)
	}
	return summary
}

func (s *Simulation) recordStats(summary economy.TurnSummary) {
	for _, id := range s.Econ.StateIDs() {
		st, ok := summary.States[id]
		if !ok {
			continue
		}
		stat := TurnStat{
			Turn:       summary.Turn,
			StateID:    id,
			Food:       st.Yields.Food,
			Production: st.Yields.Production,
			Gold:       st.Yields.Gold,
			Science:    st.Yields.Science,
			Amenities:  st.Amenities,
		}
		s.stats = append(s.stats, stat)
		s.unsavedStat = append(s.unsavedStat, stat)
	}
	// Keep the last few hundred turns in memory; the database has the rest.
	if keep := 200 * max(1, len(s.Econ.StateIDs())); len(s.stats) > keep {
		s.stats = s.stats[len(s.stats)-keep:]
	}
}

// report logs one line per turn with world totals.
func (s *Simulation) report(summary economy.TurnSummary) {
	var food, production, gold float64
	amenities := 0
	for _, st := range summary.States {
		food += st.Yields.Food
		production += st.Yields.Production
		gold += st.Yields.Gold
		amenities += st.Amenities
	}

	slog.Info("turn report",
		"turn", humanize.Ordinal(summary.Turn),
		"states", len(summary.States),
		"food", humanize.CommafWithDigits(food, 1),
		"production", humanize.CommafWithDigits(production, 1),
		"gold", humanize.CommafWithDigits(gold, 1),
		"amenities", amenities,
		"deals", len(s.Econ.ActiveDeals()),
		"expired_deals", len(summary.Expired),
		"events", len(s.events),
	)
}

// emit records an event. Callers hold the write lock.
func (s *Simulation) emit(e Event) {
	s.events = append(s.events, e)
	s.unsaved = append(s.unsaved, e)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
}

// EmitEvent records an externally produced event.
func (s *Simulation) EmitEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(e)
}

// RecentEvents returns up to limit of the newest events, newest first.
func (s *Simulation) RecentEvents(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out
}

// Checkpoint is a consistent view of everything a save must persist.
type Checkpoint struct {
	Snapshot economy.Snapshot
	Events   []Event
	Stats    []TurnStat

	statEpoch int
}

// Pending captures the economy state together with the events and statistics
// recorded since the last MarkSaved. The buffers are kept until MarkSaved.
func (s *Simulation) Pending() Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Checkpoint{
		Snapshot:  s.Econ.Export(),
		Events:    append([]Event(nil), s.unsaved...),
		Stats:     append([]TurnStat(nil), s.unsavedStat...),
		statEpoch: s.statEpoch,
	}
}

// MarkSaved forgets the buffered entries a checkpoint has persisted. Entries
// recorded after the checkpoint was taken stay buffered.
func (s *Simulation) MarkSaved(cp Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsaved = s.unsaved[min(len(cp.Events), len(s.unsaved)):]
	if cp.statEpoch == s.statEpoch {
		s.unsavedStat = s.unsavedStat[min(len(cp.Stats), len(s.unsavedStat)):]
	}
}

// History returns the in-memory statistics of one state, oldest first.
func (s *Simulation) History(stateID int) []TurnStat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []TurnStat
	for _, st := range s.stats {
		if st.StateID == stateID {
			out = append(out, st)
		}
	}
	return out
}

// LastSummary returns the summary of the most recent turn.
func (s *Simulation) LastSummary() economy.TurnSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Summary returns the current summary of every state.
func (s *Simulation) Summary() economy.TurnSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Econ.TurnSummary()
}

// StateSummary returns the current summary of one state.
func (s *Simulation) StateSummary(stateID int) (economy.StateSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Econ.StateSummary(stateID)
}

// VisibleResources returns the deposits a state can see.
func (s *Simulation) VisibleResources(stateID int) []economy.VisibleDeposit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Econ.VisibleResources(stateID)
}

// ActiveDeals returns the trade deals in force.
func (s *Simulation) ActiveDeals() []economy.TradeDeal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Econ.ActiveDeals()
}

// Revealed returns the world-wide revealed resources.
func (s *Simulation) Revealed() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Econ.Revealed()
}

// Deposit returns the deposit on a tile.
func (s *Simulation) Deposit(tileID int) (economy.Deposit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Econ.Deposit(tileID)
}

// Status is a point-in-time overview of the simulation.
type Status struct {
	Turn     int   `json:"turn"`
	Seed     int64 `json:"seed"`
	Tiles    int   `json:"tiles"`
	States   int   `json:"states"`
	Deposits int   `json:"deposits"`
	Deals    int   `json:"deals"`
	Revealed int   `json:"revealed"`
}

// Status returns an overview of the simulation.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Turn:     s.Econ.Turn(),
		Seed:     s.Econ.Seed(),
		Tiles:    s.World.TileCount(),
		States:   len(s.Econ.StateIDs()),
		Deposits: s.Econ.DepositCount(),
		Deals:    len(s.Econ.ActiveDeals()),
		Revealed: len(s.Econ.Revealed()),
	}
}

// Export captures the persisted economy state.
func (s *Simulation) Export() economy.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Econ.Export()
}

// ExportJSON captures the persisted economy state as JSON.
func (s *Simulation) ExportJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Econ.ExportJSON()
}
