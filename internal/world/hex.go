// Package world provides the world-grid collaborator of the economy: a hex grid
// of tiles with height, biome, neighbours, political ownership and settlements.
// Uses axial coordinates (q, r).
package world

// HexCoord is a position on the hex grid in axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// hexDirections are the six neighbour offsets.
var hexDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var out [6]HexCoord
	for i, d := range hexDirections {
		out[i] = HexCoord{Q: h.Q + d.Q, R: h.R + d.R}
	}
	return out
}

// Ring returns the cube-distance ring size, max(|q|, |r|, |s|).
func (h HexCoord) Ring() int {
	return max(abs(h.Q), abs(h.R), abs(h.S()))
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	return HexCoord{Q: a.Q - b.Q, R: a.R - b.R}.Ring()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
