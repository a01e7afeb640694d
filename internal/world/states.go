// Political layout: capitals, territory and settlements.
package world

import (
	"math/rand"
	"sort"
	"strconv"
)

// placeStates chooses capitals on the most desirable land, grows each state's
// territory around its capital and seeds a handful of towns per state.
// Tiles are mutated in place; the returned states are numbered from 1.
func placeStates(tiles []Tile, cfg GenConfig, seed int64) []State {
	if cfg.States <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed + 200))

	type scored struct {
		id    int
		score float64
	}
	var candidates []scored
	for i := range tiles {
		if tiles[i].Biome == BiomeMarine {
			continue
		}
		if s := settlementScore(tiles, i); s > 0 {
			candidates = append(candidates, scored{i, s})
		}
	}
	// Stable on tile id so equal scores resolve the same way every run.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	minCapitalDist := max(3, cfg.Radius/3)
	var capitals []int
	for _, c := range candidates {
		if len(capitals) >= cfg.States {
			break
		}
		if tooClose(tiles, c.id, capitals, minCapitalDist) {
			continue
		}
		capitals = append(capitals, c.id)
	}

	names := generateNames(rng, len(capitals))
	states := make([]State, len(capitals))
	burg := 0
	for i, capital := range capitals {
		burg++
		states[i] = State{ID: i + 1, Name: names[i], Capital: capital}
		tiles[capital].Burg = burg
	}

	// Territory: every land tile within reach joins the nearest capital.
	reach := max(4, cfg.Radius/2)
	for i := range tiles {
		if tiles[i].Biome == BiomeMarine {
			continue
		}
		best, bestDist := 0, reach+1
		for s, capital := range capitals {
			if d := Distance(tiles[i].Coord, tiles[capital].Coord); d < bestDist {
				best, bestDist = s+1, d
			}
		}
		tiles[i].State = best
	}

	// Towns: best remaining sites inside each state, kept apart from other burgs.
	burgs := append([]int(nil), capitals...)
	towns := make(map[int]int)
	for _, c := range candidates {
		owner := tiles[c.id].State
		if owner == 0 || tiles[c.id].Burg > 0 || towns[owner] >= cfg.TownsPerState {
			continue
		}
		if tooClose(tiles, c.id, burgs, 3) {
			continue
		}
		burg++
		tiles[c.id].Burg = burg
		burgs = append(burgs, c.id)
		towns[owner]++
	}

	return states
}

// settlementScore evaluates how desirable a tile is for a settlement.
// Prefers fertile lowland next to water with a mix of neighbouring biomes.
func settlementScore(tiles []Tile, id int) float64 {
	t := tiles[id]
	score := 0.0

	switch t.Biome {
	case BiomeGrassland, BiomeSavanna:
		score += 3.0
	case BiomeTemperateDeciduousForest, BiomeTropicalSeasonalForest:
		score += 2.0
	case BiomeTemperateRainforest, BiomeTropicalRainforest, BiomeTaiga:
		score += 1.0
	case BiomeHotDesert, BiomeColdDesert, BiomeWetland, BiomeTundra:
		score += 0.5
	default:
		return 0
	}

	biomes := make(map[Biome]bool)
	coastal := false
	for _, n := range t.Neighbors {
		nb := tiles[n].Biome
		if nb == BiomeMarine {
			coastal = true
			continue
		}
		biomes[nb] = true
	}
	score += float64(len(biomes)) * 0.3
	if coastal {
		score += 1.0
	}

	// Mountains are poor sites.
	if t.Height > 60 {
		score -= 1.0
	}
	return score
}

func tooClose(tiles []Tile, id int, existing []int, minDist int) bool {
	for _, e := range existing {
		if Distance(tiles[id].Coord, tiles[e].Coord) < minDist {
			return true
		}
	}
	return false
}

// generateNames produces procedural state names by combining syllables.
func generateNames(rng *rand.Rand, count int) []string {
	prefixes := []string{
		"Iron", "Green", "Ash", "Stone", "Mill", "Cross", "Black",
		"Silver", "Red", "White", "Dark", "Bright", "High", "Low",
		"Old", "New", "Far", "Deep", "Long", "Broad", "Gold", "Frost",
		"Storm", "Thorn", "Elm", "Oak", "Pine", "Copper", "River",
	}
	suffixes := []string{
		"haven", "ford", "hollow", "wick", "bridge", "gate", "keep",
		"stead", "wood", "field", "dale", "crest", "vale", "port",
		"mark", "bury", "marsh", "reach", "moor", "land", "helm",
	}

	// Once every combination is taken, later rounds are numbered.
	combos := len(prefixes) * len(suffixes)
	used := make(map[string]bool)
	names := make([]string, 0, count)
	for len(names) < count {
		name := prefixes[rng.Intn(len(prefixes))] + suffixes[rng.Intn(len(suffixes))]
		if round := len(names) / combos; round > 0 {
			name += " " + strconv.Itoa(round+1)
		}
		if !used[name] {
			used[name] = true
			names = append(names, name)
		}
	}
	return names
}
