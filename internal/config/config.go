// Package config loads the econsim configuration: YAML file values over
// built-in defaults, then environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/realm-economy/internal/catalog"
	"github.com/talgya/realm-economy/internal/world"
)

// Environment variables.
const (
	EnvConfig   = "ECONSIM_CONFIG"
	EnvAdminKey = "ECONSIM_ADMIN_KEY"
	EnvRelayKey = "ECONSIM_RELAY_KEY"
	EnvSeed     = "ECONSIM_SEED"
	EnvRandom   = "ECONSIM_RANDOM_ORG_KEY"
)

// Config is the complete runtime configuration.
type Config struct {
	Seed         int64  `yaml:"seed"` // world generation seed
	DBPath       string `yaml:"db_path"`
	SnapshotPath string `yaml:"snapshot_path"`
	Port         int    `yaml:"port"`
	TrustProxy   bool   `yaml:"trust_proxy"` // key rate limits on X-Forwarded-For

	TurnInterval    time.Duration `yaml:"turn_interval"`
	AutoAdvance     bool          `yaml:"auto_advance"`
	Speed           float64       `yaml:"speed"`
	CheckpointEvery int           `yaml:"checkpoint_every"` // turns between saves, 0 = only on shutdown

	World   world.GenConfig `yaml:"world"`
	Economy EconomyConfig   `yaml:"economy"`

	// Secrets come from the environment only.
	AdminKey     string `yaml:"-"`
	RelayKey     string `yaml:"-"`
	RandomOrgKey string `yaml:"-"` // seeds from random.org when set
}

// EconomyConfig configures the economy engine.
type EconomyConfig struct {
	Seed         int64  `yaml:"seed"`    // deposit seed, 0 = random
	CatalogPath  string `yaml:"catalog"` // empty = built-in tables
	SpawnOnWater bool   `yaml:"spawn_on_water"`
	Workers      int    `yaml:"workers"` // parallel state processing, <= 1 = sequential
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Seed:            42,
		DBPath:          "data/econsim.db",
		SnapshotPath:    "data/econsim.snap.zst",
		Port:            8080,
		TurnInterval:    1500 * time.Millisecond,
		AutoAdvance:     true,
		Speed:           1,
		CheckpointEvery: 20,
		World:           world.DefaultGenConfig(),
		Economy: EconomyConfig{
			Workers: 1,
		},
	}
}

// Load reads a YAML file over the defaults and applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decode(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.World.Seed = cfg.Seed
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WorldFor returns the world generation parameters for a catalog. The sea
// level always lands on the catalog's land height so the world and the
// spawner agree on which tiles are water.
func (c Config) WorldFor(cat *catalog.Catalog) world.GenConfig {
	gen := c.World
	gen.LandHeight = cat.LandHeight
	return gen
}

// FromEnv loads the file named by ECONSIM_CONFIG, or the defaults when unset.
func FromEnv() (Config, error) {
	return Load(os.Getenv(EnvConfig))
}

func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSeed, err)
		}
		c.Seed = seed
	}
	c.AdminKey = os.Getenv(EnvAdminKey)
	c.RelayKey = os.Getenv(EnvRelayKey)
	c.RandomOrgKey = os.Getenv(EnvRandom)
	return nil
}

// Validate rejects values the simulation cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case c.TurnInterval <= 0:
		return fmt.Errorf("turn_interval must be positive, got %s", c.TurnInterval)
	case c.Speed < 0:
		return fmt.Errorf("speed must not be negative, got %v", c.Speed)
	case c.CheckpointEvery < 0:
		return fmt.Errorf("checkpoint_every must not be negative, got %d", c.CheckpointEvery)
	case c.World.Radius <= 0:
		return fmt.Errorf("world.radius must be positive, got %d", c.World.Radius)
	case c.World.SeaLevel <= 0 || c.World.SeaLevel >= 1:
		return fmt.Errorf("world.sea_level must be in (0, 1), got %v", c.World.SeaLevel)
	case c.World.States <= 0:
		return fmt.Errorf("world.states must be positive, got %d", c.World.States)
	case c.World.TownsPerState < 0:
		return fmt.Errorf("world.towns_per_state must not be negative, got %d", c.World.TownsPerState)
	case c.Economy.Workers < 0:
		return fmt.Errorf("economy.workers must not be negative, got %d", c.Economy.Workers)
	case c.DBPath == "":
		return errors.New("db_path is required")
	}
	return nil
}
