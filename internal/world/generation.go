// World generation using layered simplex noise.
// Generates elevation, moisture and temperature fields, then derives height,
// biome, political states and settlements.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Radius        int     `yaml:"radius"`          // Hex grid radius (~22 for ~1500 tiles)
	Seed          int64   `yaml:"-"`               // Random seed (0 = random)
	SeaLevel      float64 `yaml:"sea_level"`       // Elevation threshold for water (0.0–1.0)
	LandHeight    uint8   `yaml:"-"`               // Height value assigned to the sea level
	States        int     `yaml:"states"`          // Number of political entities
	TownsPerState int     `yaml:"towns_per_state"` // Settlements besides the capital
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:        22,
		Seed:          0,
		SeaLevel:      0.25,
		LandHeight:    20,
		States:        6,
		TownsPerState: 3,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Radius:        6,
		Seed:          42,
		SeaLevel:      0.30,
		LandHeight:    20,
		States:        3,
		TownsPerState: 1,
	}
}

// Generate creates a complete world grid. The result is fully determined by
// the configuration when Seed is non-zero.
func Generate(cfg GenConfig) *Grid {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.LandHeight == 0 {
		cfg.LandHeight = 20
	}

	// Three noise generators for independent layers.
	elevNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + 1)
	tempNoise := opensimplex.NewNormalized(seed + 2)

	var tiles []Tile
	byCoord := make(map[HexCoord]int)

	for q := -cfg.Radius; q <= cfg.Radius; q++ {
		for r := -cfg.Radius; r <= cfg.Radius; r++ {
			coord := HexCoord{Q: q, R: r}
			if coord.Ring() > cfg.Radius {
				continue
			}

			// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
			x := float64(q) + float64(r)*0.5
			y := float64(r) * math.Sqrt(3.0) / 2.0

			elev := octaveNoise(elevNoise, x, y, 4, 0.08, 0.5)
			moist := octaveNoise(moistNoise, x, y, 3, 0.06, 0.5)
			temp := octaveNoise(tempNoise, x, y, 3, 0.05, 0.5)

			// Continental shaping: reduce elevation near edges to create an ocean border.
			distFromCenter := math.Sqrt(x*x+y*y) / float64(cfg.Radius)
			edgeFalloff := 1.0 - math.Pow(distFromCenter, 3.5)
			if edgeFalloff < 0 {
				edgeFalloff = 0
			}
			elev *= edgeFalloff

			// Temperature decreases with elevation and distance from the equator.
			temp = temp*0.6 + (1.0-math.Abs(y)/float64(cfg.Radius))*0.3 + (1.0-elev)*0.1

			height := toHeight(elev, cfg.SeaLevel, cfg.LandHeight)

			id := len(tiles)
			byCoord[coord] = id
			tiles = append(tiles, Tile{
				ID:     id,
				Coord:  coord,
				Height: height,
				Biome:  classifyBiome(height, temp, moist, cfg.LandHeight),
			})
		}
	}

	for i := range tiles {
		for _, nc := range tiles[i].Coord.Neighbors() {
			if n, ok := byCoord[nc]; ok {
				tiles[i].Neighbors = append(tiles[i].Neighbors, n)
			}
		}
	}

	states := placeStates(tiles, cfg, seed)

	return &Grid{
		tiles:   tiles,
		states:  states,
		byCoord: byCoord,
		radius:  cfg.Radius,
		seed:    seed,
	}
}

// toHeight maps a normalized elevation onto the 0–100 height scale so that the
// sea level lands exactly on landHeight.
func toHeight(elev, seaLevel float64, landHeight uint8) uint8 {
	land := float64(landHeight)
	var h float64
	if elev < seaLevel {
		h = elev / seaLevel * (land - 1)
	} else {
		h = land + (elev-seaLevel)/(1-seaLevel)*(100-land)
	}
	h = math.Round(h)
	if h < 0 {
		h = 0
	}
	if h > 100 {
		h = 100
	}
	if elev >= seaLevel && h < land {
		h = land
	}
	return uint8(h)
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// BiomeCounts returns a summary of the biome distribution.
func BiomeCounts(g *Grid) map[Biome]int {
	counts := make(map[Biome]int)
	for _, t := range g.tiles {
		counts[t.Biome]++
	}
	return counts
}
