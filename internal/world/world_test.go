package world

import (
	"math/rand"
	"testing"
)

func TestHex_NeighborsAndDistance(t *testing.T) {
	origin := HexCoord{}
	for _, n := range origin.Neighbors() {
		if d := Distance(origin, n); d != 1 {
			t.Fatalf("neighbour %v: got distance %d want 1", n, d)
		}
	}
	if got := Distance(HexCoord{Q: 2, R: -1}, HexCoord{Q: -1, R: 2}); got != 3 {
		t.Fatalf("distance: got %d want 3", got)
	}
}

func TestGenerate_IsDeterministic(t *testing.T) {
	a := Generate(SmallTestConfig())
	b := Generate(SmallTestConfig())

	if a.TileCount() != b.TileCount() {
		t.Fatalf("tile count: got %d want %d", b.TileCount(), a.TileCount())
	}
	// 3r(r+1)+1 tiles for a hex of radius r.
	if want := 3*6*7 + 1; a.TileCount() != want {
		t.Fatalf("tile count: got %d want %d", a.TileCount(), want)
	}
	for i := 0; i < a.TileCount(); i++ {
		ta, _ := a.Tile(i)
		tb, _ := b.Tile(i)
		if ta.Height != tb.Height || ta.Biome != tb.Biome || ta.State != tb.State || ta.Burg != tb.Burg {
			t.Fatalf("tile %d differs: %+v vs %+v", i, ta, tb)
		}
	}
}

func TestGenerate_TilesAreConsistent(t *testing.T) {
	g := Generate(SmallTestConfig())

	// Re-validating the generated data must succeed.
	var tiles []Tile
	for i := 0; i < g.TileCount(); i++ {
		tile, _ := g.Tile(i)
		tiles = append(tiles, tile)
	}
	if _, err := NewGrid(tiles, g.States()); err != nil {
		t.Fatalf("generated grid is invalid: %v", err)
	}

	for _, tile := range tiles {
		water := tile.Height < 20
		if water != (tile.Biome == BiomeMarine) {
			t.Fatalf("tile %d: height %d with biome %s", tile.ID, tile.Height, tile.Biome)
		}
		if water && tile.State != 0 {
			t.Fatalf("water tile %d owned by state %d", tile.ID, tile.State)
		}
		if got, ok := g.At(tile.Coord); !ok || got.ID != tile.ID {
			t.Fatalf("At(%v): got %d", tile.Coord, got.ID)
		}
	}

	for _, s := range g.States() {
		capital, ok := g.Tile(s.Capital)
		if !ok || capital.State != s.ID || capital.Burg == 0 {
			t.Fatalf("state %d capital %+v", s.ID, capital)
		}
		if !g.HasAdjacentSettlement(s.Capital) {
			t.Fatalf("capital %d should count as settled", s.Capital)
		}
	}
}

func TestNewGrid_Validates(t *testing.T) {
	states := []State{{ID: 1, Name: "A"}}
	good := []Tile{
		{ID: 0, Height: 30, Biome: BiomeGrassland, Neighbors: []int{1}, State: 1},
		{ID: 1, Height: 10, Biome: BiomeMarine, Neighbors: []int{0}, Burg: 1},
	}
	g, err := NewGrid(good, states)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if !g.HasAdjacentSettlement(0) {
		t.Fatalf("tile 0 neighbours a burg")
	}
	if got := g.OwnedTiles(1); len(got) != 1 || got[0] != 0 {
		t.Fatalf("owned tiles: got %v", got)
	}
	if _, ok := g.Tile(5); ok {
		t.Fatalf("tile 5 should not exist")
	}

	cases := map[string][]Tile{
		"bad id":        {{ID: 3}},
		"bad neighbour": {{ID: 0, Neighbors: []int{9}}},
		"self neighbour": {{ID: 0, Neighbors: []int{0}}},
		"unknown state": {{ID: 0, State: 7}},
	}
	for name, tiles := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewGrid(tiles, states); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestToHeight_SeaLevelBoundary(t *testing.T) {
	if h := toHeight(0.2499, 0.25, 20); h >= 20 {
		t.Fatalf("below sea: got %d", h)
	}
	if h := toHeight(0.25, 0.25, 20); h != 20 {
		t.Fatalf("at sea level: got %d want 20", h)
	}
	if h := toHeight(1, 0.25, 20); h != 100 {
		t.Fatalf("peak: got %d want 100", h)
	}
}

func TestGenerateNames_MoreThanCombinations(t *testing.T) {
	const count = 29*21 + 40
	names := generateNames(rand.New(rand.NewSource(1)), count)
	if len(names) != count {
		t.Fatalf("names: got %d want %d", len(names), count)
	}
	seen := make(map[string]bool, count)
	for _, n := range names {
		if seen[n] {
			t.Fatalf("duplicate name %q", n)
		}
		seen[n] = true
	}
}
