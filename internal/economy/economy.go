package economy

import (
	"log/slog"
	"math/rand"
	"sort"

	"github.com/talgya/realm-economy/internal/catalog"
)

// Option configures an Economy.
type Option func(*options)

type options struct {
	spawnOnWater bool
	workers      int
	seedSource   func() int64
}

// WithSpawnOnWater lets deposits appear on water tiles (fish, pearls).
func WithSpawnOnWater(on bool) Option {
	return func(o *options) { o.spawnOnWater = on }
}

// WithWorkers spreads per-state turn processing over n goroutines. n <= 1 keeps
// it on the caller's goroutine.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithSeedSource sets where Reset draws its new seed from.
func WithSeedSource(f func() int64) Option {
	return func(o *options) { o.seedSource = f }
}

// Economy is the simulation root for all state economies. It is not safe for
// concurrent use; callers serialize access.
type Economy struct {
	cat  *catalog.Catalog
	opts options

	world       World
	initialized bool
	seed        int64
	turn        int

	deposits map[int]*Deposit      // tile id → deposit
	states   map[int]*StateEconomy // state id → economy
	names    map[int]string        // state id → display name
	order    []int                 // state ids, ascending
	revealed map[string]bool       // world-wide revealed resources
	deals    []*TradeDeal

	ownedLand     map[int][]int // state id → owned land tile ids
	ownedDeposits map[int][]int // state id → owned tile ids holding a deposit
}

// New creates an empty economy over a catalog. Call Initialize before use.
func New(cat *catalog.Catalog, opts ...Option) *Economy {
	o := options{seedSource: rand.Int63}
	for _, fn := range opts {
		fn(&o)
	}
	return &Economy{cat: cat, opts: o}
}

// Catalog returns the rule tables the economy runs on.
func (e *Economy) Catalog() *catalog.Catalog {
	return e.cat
}

// Initialized reports whether Initialize or a successful Load has run.
func (e *Economy) Initialized() bool {
	return e.initialized
}

// Seed returns the seed deposits were generated from.
func (e *Economy) Seed() int64 {
	return e.seed
}

// Initialize places deposits, creates one economy per live state and
// auto-improves deposits next to settlements. It does nothing if the economy
// is already initialized.
func (e *Economy) Initialize(w World, seed int64) {
	if e.initialized {
		return
	}
	e.world = w
	e.seed = seed
	e.turn = 0
	e.revealed = make(map[string]bool)
	e.deals = nil

	e.deposits = Generate(w, e.cat, seed, e.opts.spawnOnWater)
	e.states = make(map[int]*StateEconomy)
	e.names = make(map[int]string)
	for _, s := range w.States() {
		if s.ID == 0 || s.Removed {
			continue
		}
		e.states[s.ID] = newStateEconomy(e.cat, s.ID)
		e.names[s.ID] = s.Name
	}
	e.reindex()
	improved := e.autoImprove()
	e.initialized = true

	slog.Info("economy initialized",
		"seed", seed,
		"deposits", len(e.deposits),
		"states", len(e.states),
		"auto_improved", improved,
	)
}

// Reset discards all deposits, economies and deals and regenerates them from a
// freshly drawn seed.
func (e *Economy) Reset() {
	if e.world == nil {
		return
	}
	w := e.world
	e.initialized = false
	e.Initialize(w, e.opts.seedSource())
}

// reindex rebuilds the per-state tile lists from the world.
func (e *Economy) reindex() {
	e.order = e.order[:0]
	for id := range e.states {
		e.order = append(e.order, id)
	}
	sort.Ints(e.order)

	e.ownedLand = make(map[int][]int)
	e.ownedDeposits = make(map[int][]int)
	for id := 0; id < e.world.TileCount(); id++ {
		tile, ok := e.world.Tile(id)
		if !ok || tile.State == 0 {
			continue
		}
		if _, live := e.states[tile.State]; !live {
			continue
		}
		if e.cat.IsLand(tile.Height) {
			e.ownedLand[tile.State] = append(e.ownedLand[tile.State], id)
		}
		if _, has := e.deposits[id]; has {
			e.ownedDeposits[tile.State] = append(e.ownedDeposits[tile.State], id)
		}
	}
}

// autoImprove improves owned deposits the owner can see that sit on or next to
// a settlement. Returns the number improved.
func (e *Economy) autoImprove() int {
	n := 0
	for _, stateID := range e.order {
		se := e.states[stateID]
		for _, tileID := range e.ownedDeposits[stateID] {
			d := e.deposits[tileID]
			def, ok := e.cat.Resource(d.ResourceID)
			if !ok || def.ImprovementRequired == "" {
				continue
			}
			if def.RevealTech != "" && !se.KnownTech[def.RevealTech] {
				continue
			}
			if !e.world.HasAdjacentSettlement(tileID) {
				continue
			}
			d.Improved = true
			d.ImprovementID = def.ImprovementRequired
			n++
		}
	}
	return n
}
