package economy

import (
	"testing"

	"github.com/talgya/realm-economy/internal/catalog"
	"github.com/talgya/realm-economy/internal/world"
)

// Every resource has weight 1 and density is 1, so any eligible tile always
// receives the first matching resource.
const testTables = `
spawn_density: 1
luxury_base_amenity: 2
default_strategic_cap: 20
land_height: 20
baseline_techs: [bronze_working]

improvements:
  - {id: farm, name: Farm, valid_categories: [bonus], valid_resources: [wheat], tile_yield: {food: 2}}
  - {id: mine, name: Mine, valid_categories: [strategic, luxury], valid_resources: [iron, gold], tile_yield: {production: 1}}
  - {id: pasture, name: Pasture, valid_categories: [strategic], valid_resources: [horses], tile_yield: {food: 1}}
  - {id: plantation, name: Plantation, valid_categories: [luxury], valid_resources: [silk], tile_yield: {gold: 2}}

resources:
  - id: wheat
    name: Wheat
    category: bonus
    spawn: {allowed_biomes: [4], min_height: 20, max_height: 35, rarity_weight: 1}
    improvement: farm
    tile_yield: {food: 2}
  - id: iron
    name: Iron
    category: strategic
    spawn: {allowed_biomes: [9], min_height: 20, max_height: 60, rarity_weight: 1}
    reveal_tech: iron_working
    improvement: mine
    tile_yield: {production: 1}
    per_turn_income: 3
    base_cap: 5
  - id: horses
    name: Horses
    category: strategic
    spawn: {allowed_biomes: [3], min_height: 20, max_height: 40, rarity_weight: 1}
    improvement: pasture
    tile_yield: {food: 1}
    per_turn_income: 1
  - id: gold
    name: Gold
    category: luxury
    spawn: {allowed_biomes: [1], min_height: 20, max_height: 60, rarity_weight: 1}
    improvement: mine
    tile_yield: {gold: 3}
    amenity: 4
  - id: silk
    name: Silk
    category: luxury
    spawn: {allowed_biomes: [6], min_height: 20, max_height: 40, rarity_weight: 1}
    improvement: plantation
    tile_yield: {gold: 2}

techs:
  - {id: bronze_working, name: Bronze Working, cost: 10}
  - {id: iron_working, name: Iron Working, cost: 50, reveals: [iron]}

units:
  - {id: warrior, strategic: {}}
  - {id: swordsman, strategic: {iron: 2}}
  - {id: knight, strategic: {iron: 1, horses: 1}}
`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(testTables))
	if err != nil {
		t.Fatalf("parse test catalog: %v", err)
	}
	return c
}

type tileSpec struct {
	biome  world.Biome
	height uint8
	state  int
	burg   int
}

func land(b world.Biome, state int) tileSpec {
	return tileSpec{biome: b, height: 25, state: state}
}

// lineWorld builds a strip of tiles where tile i neighbours i-1 and i+1.
func lineWorld(t *testing.T, states []world.State, specs ...tileSpec) *world.Grid {
	t.Helper()
	tiles := make([]world.Tile, len(specs))
	for i, s := range specs {
		tiles[i] = world.Tile{
			ID:     i,
			Coord:  world.HexCoord{Q: i},
			Height: s.height,
			Biome:  s.biome,
			State:  s.state,
			Burg:   s.burg,
		}
		if i > 0 {
			tiles[i].Neighbors = append(tiles[i].Neighbors, i-1)
		}
		if i < len(specs)-1 {
			tiles[i].Neighbors = append(tiles[i].Neighbors, i+1)
		}
	}
	g, err := world.NewGrid(tiles, states)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	return g
}

func twoStates() []world.State {
	return []world.State{{ID: 1, Name: "Ashford"}, {ID: 2, Name: "Brightvale"}}
}

func newTestEconomy(t *testing.T, w World, opts ...Option) *Economy {
	t.Helper()
	e := New(testCatalog(t), opts...)
	e.Initialize(w, 7)
	return e
}

func perpetual() *int { return nil }

func turns(n int) *int { return &n }
