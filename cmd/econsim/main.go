// Command econsim runs the resource economy over a generated world and serves
// it over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/talgya/realm-economy/internal/api"
	"github.com/talgya/realm-economy/internal/catalog"
	"github.com/talgya/realm-economy/internal/config"
	"github.com/talgya/realm-economy/internal/economy"
	"github.com/talgya/realm-economy/internal/engine"
	"github.com/talgya/realm-economy/internal/entropy"
	"github.com/talgya/realm-economy/internal/persistence"
	"github.com/talgya/realm-economy/internal/persistence/snapshot"
	"github.com/talgya/realm-economy/internal/world"
)

func main() {
	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))

	if err := run(); err != nil {
		slog.Error("econsim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	cat := catalog.Default()
	if cfg.Economy.CatalogPath != "" {
		if cat, err = catalog.Load(cfg.Economy.CatalogPath); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	slog.Info("catalog loaded",
		"resources", len(cat.Resources),
		"improvements", len(cat.Improvements),
		"techs", len(cat.Techs),
		"units", len(cat.Units),
	)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── World (always regenerated, deterministic from seed) ───────────
	genCfg := cfg.WorldFor(cat)
	if saved, err := db.GetMeta(persistence.MetaWorldSeed); err == nil {
		if seed, err := strconv.ParseInt(saved, 10, 64); err == nil && seed != genCfg.Seed {
			slog.Warn("using the world seed of the saved economy", "saved", seed, "configured", genCfg.Seed)
			genCfg.Seed = seed
		}
	}
	g := world.Generate(genCfg)
	for b, n := range world.BiomeCounts(g) {
		slog.Debug("biome", "type", b.String(), "tiles", n)
	}
	slog.Info("world generated", "grid", g.String(), "seed", g.Seed())

	// ── Economy: load or generate ─────────────────────────────────────
	seeds := entropy.NewSource(cfg.RandomOrgKey)
	if seeds.Enabled() {
		slog.Info("economy seeds from random.org")
	}
	econ := economy.New(cat,
		economy.WithSpawnOnWater(cfg.Economy.SpawnOnWater),
		economy.WithWorkers(cfg.Economy.Workers),
		economy.WithSeedSource(seeds.Seed),
	)
	fresh := !loadEconomy(econ, g, db, cfg.SnapshotPath)
	if fresh {
		seed := cfg.Economy.Seed
		if seed == 0 {
			seed = seeds.Seed()
		}
		slog.Info("no saved economy found, generating deposits", "seed", seed)
		econ.Initialize(g, seed)
	}

	sim := engine.NewSimulation(g, econ)
	if fresh {
		if err := db.SaveSimulation(sim); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	// ── Scheduler ─────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Interval = cfg.TurnInterval
	eng.CheckpointEvery = cfg.CheckpointEvery
	eng.SetSpeed(cfg.Speed)
	if !cfg.AutoAdvance {
		eng.SetSpeed(0)
	}
	eng.OnTurn = func() { sim.ProcessTurn() }
	eng.OnCheckpoint = func() {
		if err := db.SaveSimulation(sim); err != nil {
			slog.Error("checkpoint save failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn(config.EnvAdminKey + " not set; admin POST endpoints will be disabled")
	}
	hub := api.NewHub()
	go hub.Run()
	limiter := api.NewRateLimiter(5, 20)
	limiter.TrustProxy = cfg.TrustProxy
	apiServer := &api.Server{
		Sim:          sim,
		Eng:          eng,
		DB:           db,
		Hub:          hub,
		Port:         cfg.Port,
		AdminKey:     cfg.AdminKey,
		RelayKey:     cfg.RelayKey,
		SnapshotPath: cfg.SnapshotPath,
		Limiter:      limiter,
	}
	sim.OnTurnProcessed = apiServer.PublishTurn
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status := sim.Status()
	fmt.Printf("\nThe realm economy is running: %s deposits across %d states on %s tiles.\n",
		humanize.Comma(int64(status.Deposits)), status.States, humanize.Comma(int64(status.Tiles)))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	if status.Turn > 0 {
		fmt.Printf("Resuming from turn %d\n", status.Turn)
	}
	fmt.Println("Starting turns... (Ctrl+C to stop)")

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	hub.Close()

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveSimulation(sim); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	if cfg.SnapshotPath != "" {
		if _, err := snapshot.Save(cfg.SnapshotPath, sim); err != nil {
			slog.Error("final snapshot failed", "error", err)
		}
	}

	fmt.Println("Economy stopped. State saved.")
	return nil
}

// loadEconomy restores the economy from the database, or from the snapshot
// file when the database is empty. It reports whether anything was loaded.
func loadEconomy(econ *economy.Economy, g *world.Grid, db *persistence.DB, snapPath string) bool {
	if db.HasEconomyState() {
		snap, err := db.LoadEconomy()
		if err != nil {
			slog.Error("failed to read saved economy", "error", err)
			return false
		}
		if !econ.Restore(g, snap) {
			slog.Warn("saved economy does not fit the world, starting over")
			return false
		}
		return true
	}

	if snapPath == "" {
		return false
	}
	h, payload, err := snapshot.ReadFile(snapPath)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	if err != nil {
		slog.Error("failed to read snapshot file", "path", snapPath, "error", err)
		return false
	}
	if h.WorldSeed != g.Seed() {
		slog.Warn("snapshot file belongs to another world, ignoring", "path", snapPath, "world_seed", h.WorldSeed)
		return false
	}
	if !econ.Load(g, payload) {
		return false
	}
	slog.Info("economy loaded from snapshot file", "path", snapPath, "turn", h.Turn)
	return true
}
