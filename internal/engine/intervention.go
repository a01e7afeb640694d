package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/realm-economy/internal/economy"
)

// On-demand actions. Each runs under the write lock, records an event when it
// succeeds and logs one line either way.

// Build constructs an improvement on a tile's deposit.
func (s *Simulation) Build(tileID int, improvementID string) economy.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.Econ.Build(tileID, improvementID)
	if res.Success {
		d, _ := s.Econ.Deposit(tileID)
		s.emit(Event{
			Turn:        s.Econ.Turn(),
			Description: fmt.Sprintf("%s on tile %d (%s)", res.Message, tileID, d.ResourceID),
			Category:    "build",
			Meta: map[string]any{
				"tile_id":        tileID,
				"improvement_id": improvementID,
				"resource_id":    d.ResourceID,
			},
		})
	}
	slog.Info("build", "tile", tileID, "improvement", improvementID, "success", res.Success, "message", res.Message)
	return res
}

// UnlockTech teaches a state a technology.
func (s *Simulation) UnlockTech(stateID int, techID string) economy.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.Econ.UnlockTech(stateID, techID)
	if res.Success {
		s.emit(Event{
			Turn:        s.Econ.Turn(),
			Description: fmt.Sprintf("%s: %s", s.Econ.StateName(stateID), res.Message),
			Category:    "tech",
			Meta: map[string]any{
				"state_id": stateID,
				"tech_id":  techID,
			},
		})
	}
	slog.Info("unlock tech", "state", stateID, "tech", techID, "success", res.Success, "message", res.Message)
	return res
}

// CreateTradeDeal opens a deal between two states. A nil duration is perpetual.
func (s *Simulation) CreateTradeDeal(from, to int, resourceID string, duration *int) economy.DealResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.Econ.CreateTradeDeal(from, to, resourceID, duration)
	if res.Success {
		s.emit(Event{
			Turn:        s.Econ.Turn(),
			Description: fmt.Sprintf("%s agrees to share %s with %s", s.Econ.StateName(from), resourceID, s.Econ.StateName(to)),
			Category:    "trade",
			Meta: map[string]any{
				"deal_id":     res.Deal.ID,
				"from_state":  from,
				"to_state":    to,
				"resource_id": resourceID,
				"expiry_turn": res.Deal.ExpiryTurn,
			},
		})
	}
	slog.Info("create trade deal", "from", from, "to", to, "resource", resourceID, "success", res.Success, "message", res.Message)
	return res
}

// CancelTradeDeal ends a deal early.
func (s *Simulation) CancelTradeDeal(id string) economy.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.Econ.CancelTradeDeal(id)
	if res.Success {
		s.emit(Event{
			Turn:        s.Econ.Turn(),
			Description: fmt.Sprintf("Trade deal %s cancelled", id),
			Category:    "trade",
			Meta:        map[string]any{"deal_id": id},
		})
	}
	slog.Info("cancel trade deal", "deal", id, "success", res.Success)
	return res
}

// SpendStrategic deducts strategic resources from a state.
func (s *Simulation) SpendStrategic(stateID int, costs map[string]int) economy.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.Econ.SpendStrategic(stateID, costs)
	slog.Info("spend strategic", "state", stateID, "costs", costs, "success", res.Success, "message", res.Message)
	return res
}

// RecruitUnit pays a unit's strategic cost for a state.
func (s *Simulation) RecruitUnit(stateID int, unitID string) economy.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.Econ.RecruitUnit(stateID, unitID)
	if res.Success {
		s.emit(Event{
			Turn:        s.Econ.Turn(),
			Description: fmt.Sprintf("%s recruits a %s", s.Econ.StateName(stateID), unitID),
			Category:    "military",
			Meta: map[string]any{
				"state_id": stateID,
				"unit_id":  unitID,
			},
		})
	}
	slog.Info("recruit unit", "state", stateID, "unit", unitID, "success", res.Success, "message", res.Message)
	return res
}

// Reset regenerates every deposit and economy from a new seed.
func (s *Simulation) Reset() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Econ.Initialized() {
		return "", fmt.Errorf("economy is not initialized")
	}
	s.Econ.Reset()
	s.stats = nil
	s.unsavedStat = nil
	s.statEpoch++
	s.last = s.Econ.TurnSummary()

	desc := fmt.Sprintf("The economy was reset with seed %d", s.Econ.Seed())
	s.emit(Event{
		Turn:        0,
		Description: desc,
		Category:    "admin",
		Meta:        map[string]any{"seed": s.Econ.Seed()},
	})
	slog.Info("reset intervention", "seed", s.Econ.Seed(), "deposits", s.Econ.DepositCount())
	return desc, nil
}

// Restore replaces the economy state with a JSON snapshot. Invalid input is
// rejected and leaves everything as it was.
func (s *Simulation) Restore(raw []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Econ.Load(s.World, raw) {
		return "", fmt.Errorf("snapshot rejected")
	}
	s.last = s.Econ.TurnSummary()

	desc := fmt.Sprintf("Economy restored at turn %d", s.Econ.Turn())
	s.emit(Event{Turn: s.Econ.Turn(), Description: desc, Category: "admin"})
	slog.Info("restore intervention", "turn", s.Econ.Turn())
	return desc, nil
}
