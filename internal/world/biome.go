package world

// Biome ids match the ids used by the economy catalog's spawn rules.
type Biome uint8

const (
	BiomeMarine Biome = iota
	BiomeHotDesert
	BiomeColdDesert
	BiomeSavanna
	BiomeGrassland
	BiomeTropicalSeasonalForest
	BiomeTemperateDeciduousForest
	BiomeTropicalRainforest
	BiomeTemperateRainforest
	BiomeTaiga
	BiomeTundra
	BiomeGlacier
	BiomeWetland
)

var biomeNames = [...]string{
	"Marine", "Hot desert", "Cold desert", "Savanna", "Grassland",
	"Tropical seasonal forest", "Temperate deciduous forest", "Tropical rainforest",
	"Temperate rainforest", "Taiga", "Tundra", "Glacier", "Wetland",
}

// String returns a human-readable biome name.
func (b Biome) String() string {
	if int(b) < len(biomeNames) {
		return biomeNames[b]
	}
	return "Unknown"
}

// classifyBiome derives a land biome from temperature and moisture (both 0–1)
// and height (0–100). Water tiles are always marine.
func classifyBiome(height uint8, temp, moisture float64, landHeight uint8) Biome {
	if height < landHeight {
		return BiomeMarine
	}
	if temp < 0.12 {
		return BiomeGlacier
	}
	if height < landHeight+4 && moisture > 0.7 {
		return BiomeWetland
	}
	switch {
	case temp < 0.25:
		return BiomeTundra
	case temp < 0.4:
		if moisture < 0.25 {
			return BiomeColdDesert
		}
		return BiomeTaiga
	case temp < 0.65:
		switch {
		case moisture < 0.25:
			return BiomeColdDesert
		case moisture < 0.45:
			return BiomeGrassland
		case moisture < 0.7:
			return BiomeTemperateDeciduousForest
		default:
			return BiomeTemperateRainforest
		}
	default:
		switch {
		case moisture < 0.25:
			return BiomeHotDesert
		case moisture < 0.45:
			return BiomeSavanna
		case moisture < 0.7:
			return BiomeTropicalSeasonalForest
		default:
			return BiomeTropicalRainforest
		}
	}
}
