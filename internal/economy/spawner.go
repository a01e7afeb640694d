package economy

import (
	"math/rand"

	"github.com/talgya/realm-economy/internal/catalog"
)

// spawnSalt separates the spawner's random stream from world generation.
const spawnSalt = 0x65636f6e

// clusterBoost multiplies the spawn chance next to a deposit of the same resource.
const clusterBoost = 3.0

// Generate scatters resource deposits over the world.
//
// Tiles are visited in ascending id order and resources in catalog order. The
// first resource whose draw succeeds claims the tile and no further resource
// is tried there, so reordering the catalog changes the map. Water tiles are
// skipped unless includeWater is set. The same world, catalog and seed always
// produce the same deposits.
func Generate(w World, cat *catalog.Catalog, seed int64, includeWater bool) map[int]*Deposit {
	rng := rand.New(rand.NewSource(seed + spawnSalt))
	deposits := make(map[int]*Deposit)

	for id := 0; id < w.TileCount(); id++ {
		tile, ok := w.Tile(id)
		if !ok {
			continue
		}
		if !includeWater && !cat.IsLand(tile.Height) {
			continue
		}

		for _, r := range cat.Resources {
			if !r.Spawn.Allows(uint8(tile.Biome), tile.Height) {
				continue
			}
			chance := r.Spawn.RarityWeight * cat.SpawnDensity
			if r.Spawn.Clustering && neighbourHas(deposits, tile.Neighbors, r.ID) {
				chance *= clusterBoost
			}
			if rng.Float64() < chance {
				deposits[id] = &Deposit{ResourceID: r.ID}
				break
			}
		}
	}
	return deposits
}

func neighbourHas(deposits map[int]*Deposit, neighbours []int, resourceID string) bool {
	for _, n := range neighbours {
		if d, ok := deposits[n]; ok && d.ResourceID == resourceID {
			return true
		}
	}
	return false
}
