package snapshot

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/talgya/realm-economy/internal/catalog"
	"github.com/talgya/realm-economy/internal/economy"
	"github.com/talgya/realm-economy/internal/engine"
	"github.com/talgya/realm-economy/internal/world"
)

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "economy.snap.zst")
	h := Header{Version: 1, Turn: 12, Seed: 7, WorldSeed: 42, CreatedAt: time.Unix(1700000000, 0).UTC()}
	payload := []byte(`{"version":1,"turn":12,"deposits":[],"states":[],"deals":[]}`)

	if err := WriteFile(path, h, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}

	got, raw, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != h {
		t.Fatalf("header: got %+v want %+v", got, h)
	}
	if string(raw) != string(payload) {
		t.Fatalf("payload: got %s want %s", raw, payload)
	}
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := ReadFile(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	plain := filepath.Join(dir, "plain.json")
	if err := os.WriteFile(plain, []byte("{}\n{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := ReadFile(plain); err == nil {
		t.Fatalf("expected error for uncompressed file")
	}
}

func playedSimulation(t *testing.T) *engine.Simulation {
	t.Helper()
	g := world.Generate(world.SmallTestConfig())
	econ := economy.New(catalog.Default())
	econ.Initialize(g, 31)
	sim := engine.NewSimulation(g, econ)
	sim.ProcessTurn()
	sim.ProcessTurn()
	return sim
}

func TestSaveRestore_Simulation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "economy.snap.zst")
	sim := playedSimulation(t)
	want := sim.Export()

	h, err := Save(path, sim)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if h.Turn != 2 || h.WorldSeed != 42 || h.Seed != 31 {
		t.Fatalf("header: %+v", h)
	}

	sim.ProcessTurn()
	if sim.CurrentTurn() != 3 {
		t.Fatalf("turn: got %d want 3", sim.CurrentTurn())
	}

	if _, err := Restore(path, sim); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := sim.CurrentTurn(); got != 2 {
		t.Fatalf("turn after restore: got %d want 2", got)
	}
	if got := sim.Export(); !reflect.DeepEqual(got, want) {
		t.Fatalf("restored economy differs from the saved one")
	}
}

func TestRestore_RejectsOtherWorld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "economy.snap.zst")
	sim := playedSimulation(t)
	if _, err := Save(path, sim); err != nil {
		t.Fatalf("save: %v", err)
	}

	cfg := world.SmallTestConfig()
	cfg.Seed = 43
	g := world.Generate(cfg)
	econ := economy.New(catalog.Default())
	econ.Initialize(g, 5)
	other := engine.NewSimulation(g, econ)

	if _, err := Restore(path, other); err == nil {
		t.Fatalf("expected world seed mismatch")
	}
	if other.CurrentTurn() != 0 {
		t.Fatalf("rejected restore changed the turn to %d", other.CurrentTurn())
	}
}
