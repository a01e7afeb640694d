package snapshot

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/realm-economy/internal/economy"
	"github.com/talgya/realm-economy/internal/engine"
)

// Save exports the simulation's economy to a snapshot file.
func Save(path string, sim *engine.Simulation) (Header, error) {
	payload, err := sim.ExportJSON()
	if err != nil {
		return Header{}, fmt.Errorf("export economy: %w", err)
	}
	status := sim.Status()
	h := Header{
		Version:   economy.SnapshotVersion,
		Turn:      status.Turn,
		Seed:      status.Seed,
		WorldSeed: sim.World.Seed(),
		CreatedAt: time.Now().UTC(),
	}
	if err := WriteFile(path, h, payload); err != nil {
		return Header{}, fmt.Errorf("write snapshot %s: %w", path, err)
	}
	slog.Info("snapshot written", "path", path, "turn", h.Turn, "bytes", humanize.Bytes(uint64(len(payload))))
	return h, nil
}

// Restore loads a snapshot file into the simulation. The file must have been
// taken on the same world.
func Restore(path string, sim *engine.Simulation) (Header, error) {
	h, payload, err := ReadFile(path)
	if err != nil {
		return Header{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if h.Version != economy.SnapshotVersion {
		return h, fmt.Errorf("snapshot version %d, want %d", h.Version, economy.SnapshotVersion)
	}
	if ws := sim.World.Seed(); h.WorldSeed != 0 && ws != 0 && h.WorldSeed != ws {
		return h, fmt.Errorf("snapshot world seed %d does not match world seed %d", h.WorldSeed, ws)
	}
	if _, err := sim.Restore(payload); err != nil {
		return h, err
	}
	return h, nil
}
