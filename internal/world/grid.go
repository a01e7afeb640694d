package world

import "fmt"

// Tile is one cell of the world grid. Tiles are identified by their index.
type Tile struct {
	ID        int      `json:"id"`
	Coord     HexCoord `json:"coord"`
	Height    uint8    `json:"height"` // 0–100, water below the land threshold
	Biome     Biome    `json:"biome"`
	Neighbors []int    `json:"neighbors"`
	State     int      `json:"state"` // owning state id, 0 = unowned
	Burg      int      `json:"burg"`  // settlement id, 0 = none
}

// State is a political entity owning tiles.
type State struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Capital int    `json:"capital"` // tile id
	Removed bool   `json:"removed,omitempty"`
}

// Grid is the complete, read-only world.
type Grid struct {
	tiles   []Tile
	states  []State
	byCoord map[HexCoord]int
	radius  int
	seed    int64
}

// NewGrid validates and indexes a set of tiles and states. Tile ids must equal
// their slice index and neighbour/state references must resolve.
func NewGrid(tiles []Tile, states []State) (*Grid, error) {
	stateIDs := make(map[int]bool, len(states))
	for _, s := range states {
		if s.ID <= 0 {
			return nil, fmt.Errorf("state %q: id must be positive", s.Name)
		}
		if stateIDs[s.ID] {
			return nil, fmt.Errorf("duplicate state id %d", s.ID)
		}
		stateIDs[s.ID] = true
	}

	byCoord := make(map[HexCoord]int, len(tiles))
	for i, t := range tiles {
		if t.ID != i {
			return nil, fmt.Errorf("tile at index %d has id %d", i, t.ID)
		}
		for _, n := range t.Neighbors {
			if n < 0 || n >= len(tiles) || n == i {
				return nil, fmt.Errorf("tile %d: bad neighbour %d", i, n)
			}
		}
		if t.State != 0 && !stateIDs[t.State] {
			return nil, fmt.Errorf("tile %d: unknown state %d", i, t.State)
		}
		byCoord[t.Coord] = i
	}

	return &Grid{tiles: tiles, states: states, byCoord: byCoord}, nil
}

// TileCount returns the number of tiles.
func (g *Grid) TileCount() int {
	return len(g.tiles)
}

// Tile returns the tile with the given id.
func (g *Grid) Tile(id int) (Tile, bool) {
	if id < 0 || id >= len(g.tiles) {
		return Tile{}, false
	}
	return g.tiles[id], true
}

// At returns the tile at a hex coordinate.
func (g *Grid) At(c HexCoord) (Tile, bool) {
	id, ok := g.byCoord[c]
	if !ok {
		return Tile{}, false
	}
	return g.tiles[id], true
}

// States returns every political entity, including removed ones.
func (g *Grid) States() []State {
	return g.states
}

// State returns the state with the given id.
func (g *Grid) State(id int) (State, bool) {
	for _, s := range g.states {
		if s.ID == id {
			return s, true
		}
	}
	return State{}, false
}

// HasAdjacentSettlement reports whether the tile or one of its neighbours
// holds a settlement.
func (g *Grid) HasAdjacentSettlement(id int) bool {
	t, ok := g.Tile(id)
	if !ok {
		return false
	}
	if t.Burg > 0 {
		return true
	}
	for _, n := range t.Neighbors {
		if g.tiles[n].Burg > 0 {
			return true
		}
	}
	return false
}

// OwnedTiles returns the ids of the tiles owned by a state.
func (g *Grid) OwnedTiles(stateID int) []int {
	var out []int
	for _, t := range g.tiles {
		if t.State == stateID {
			out = append(out, t.ID)
		}
	}
	return out
}

// Radius returns the generation radius (0 for hand-built grids).
func (g *Grid) Radius() int {
	return g.radius
}

// Seed returns the generation seed (0 for hand-built grids).
func (g *Grid) Seed() int64 {
	return g.seed
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(radius=%d, tiles=%d, states=%d)", g.radius, len(g.tiles), len(g.states))
}
