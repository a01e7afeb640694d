// Package catalog holds the static rule tables of the economy: resources,
// improvements, technologies and unit costs.
//
// A Catalog is built once at startup (Default, Load or Parse) and shared by
// reference. Nothing mutates it afterwards. Resource order is significant: the
// spawner tries resources in exactly this order and the first successful draw
// wins a tile.
package catalog

import (
	"fmt"
	"strings"
)

// Yield is a per-tile or per-state output bundle.
type Yield struct {
	Food       float64 `yaml:"food" json:"food"`
	Production float64 `yaml:"production" json:"production"`
	Gold       float64 `yaml:"gold" json:"gold"`
	Science    float64 `yaml:"science" json:"science"`
}

// Add returns the component-wise sum.
func (y Yield) Add(o Yield) Yield {
	return Yield{
		Food:       y.Food + o.Food,
		Production: y.Production + o.Production,
		Gold:       y.Gold + o.Gold,
		Science:    y.Science + o.Science,
	}
}

// IsZero reports whether every component is zero.
func (y Yield) IsZero() bool {
	return y == Yield{}
}

// SpawnRule decides where a resource may appear.
type SpawnRule struct {
	AllowedBiomes []uint8 `yaml:"allowed_biomes" json:"allowed_biomes"`
	MinHeight     uint8   `yaml:"min_height" json:"min_height"`
	MaxHeight     uint8   `yaml:"max_height" json:"max_height"`
	RarityWeight  float64 `yaml:"rarity_weight" json:"rarity_weight"` // 0–1
	Clustering    bool    `yaml:"clustering" json:"clustering"`
}

// Allows reports whether a tile with the given biome and height is eligible.
func (r SpawnRule) Allows(biome, height uint8) bool {
	if height < r.MinHeight || height > r.MaxHeight {
		return false
	}
	for _, b := range r.AllowedBiomes {
		if b == biome {
			return true
		}
	}
	return false
}

// ResourceDef describes one resource type.
type ResourceDef struct {
	ID                  string    `yaml:"id" json:"id"`
	Name                string    `yaml:"name" json:"name"`
	Category            Category  `yaml:"category" json:"category"`
	Spawn               SpawnRule `yaml:"spawn" json:"spawn"`
	RevealTech          string    `yaml:"reveal_tech,omitempty" json:"reveal_tech,omitempty"` // empty = always visible
	ImprovementRequired string    `yaml:"improvement" json:"improvement"`
	TileYield           Yield     `yaml:"tile_yield" json:"tile_yield"`

	// Strategic only.
	PerTurnIncome int `yaml:"per_turn_income,omitempty" json:"per_turn_income,omitempty"`
	BaseCap       int `yaml:"base_cap,omitempty" json:"base_cap,omitempty"`

	// Luxury only. Zero means the catalog's LuxuryBaseAmenity applies.
	AmenityValue int `yaml:"amenity,omitempty" json:"amenity,omitempty"`
}

// ImprovementDef describes a constructible facility.
type ImprovementDef struct {
	ID              string     `yaml:"id" json:"id"`
	Name            string     `yaml:"name" json:"name"`
	BuildCost       int        `yaml:"build_cost" json:"build_cost"`
	ValidCategories []Category `yaml:"valid_categories" json:"valid_categories"`
	ValidResources  []string   `yaml:"valid_resources" json:"valid_resources"`
	TileYield       Yield      `yaml:"tile_yield" json:"tile_yield"`
}

// Accepts reports whether the improvement lists the resource as a valid target.
func (d ImprovementDef) Accepts(resourceID string) bool {
	for _, r := range d.ValidResources {
		if r == resourceID {
			return true
		}
	}
	return false
}

// TechDef describes a technology.
type TechDef struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Cost    int      `yaml:"cost" json:"cost"`
	Reveals []string `yaml:"reveals" json:"reveals"`
}

// UnitDef is a recruitable unit and its strategic resource cost.
type UnitDef struct {
	ID        string         `yaml:"id" json:"id"`
	Strategic map[string]int `yaml:"strategic" json:"strategic"`
}

// Catalog is the complete, immutable rule set.
type Catalog struct {
	SpawnDensity        float64  `yaml:"spawn_density" json:"spawn_density"`
	LuxuryBaseAmenity   int      `yaml:"luxury_base_amenity" json:"luxury_base_amenity"`
	DefaultStrategicCap int      `yaml:"default_strategic_cap" json:"default_strategic_cap"`
	LandHeight          uint8    `yaml:"land_height" json:"land_height"`
	BaselineTechs       []string `yaml:"baseline_techs" json:"baseline_techs"`

	Resources    []ResourceDef    `yaml:"resources" json:"resources"`
	Improvements []ImprovementDef `yaml:"improvements" json:"improvements"`
	Techs        []TechDef        `yaml:"techs" json:"techs"`
	Units        []UnitDef        `yaml:"units" json:"units"`

	resourceIdx    map[string]int
	improvementIdx map[string]int
	techIdx        map[string]int
	unitIdx        map[string]int
}

// Resource returns the definition for id.
func (c *Catalog) Resource(id string) (ResourceDef, bool) {
	i, ok := c.resourceIdx[id]
	if !ok {
		return ResourceDef{}, false
	}
	return c.Resources[i], true
}

// Improvement returns the definition for id.
func (c *Catalog) Improvement(id string) (ImprovementDef, bool) {
	i, ok := c.improvementIdx[id]
	if !ok {
		return ImprovementDef{}, false
	}
	return c.Improvements[i], true
}

// Tech returns the definition for id.
func (c *Catalog) Tech(id string) (TechDef, bool) {
	i, ok := c.techIdx[id]
	if !ok {
		return TechDef{}, false
	}
	return c.Techs[i], true
}

// Unit returns the definition for id.
func (c *Catalog) Unit(id string) (UnitDef, bool) {
	i, ok := c.unitIdx[id]
	if !ok {
		return UnitDef{}, false
	}
	return c.Units[i], true
}

// ResourcesIn returns the resources of one category, in catalog order.
func (c *Catalog) ResourcesIn(cat Category) []ResourceDef {
	var out []ResourceDef
	for _, r := range c.Resources {
		if r.Category == cat {
			out = append(out, r)
		}
	}
	return out
}

// Amenity returns the amenity contribution of a luxury resource.
func (c *Catalog) Amenity(r ResourceDef) int {
	if r.AmenityValue > 0 {
		return r.AmenityValue
	}
	return c.LuxuryBaseAmenity
}

// StrategicCap returns the starting stockpile cap of a strategic resource.
func (c *Catalog) StrategicCap(r ResourceDef) int {
	if r.BaseCap > 0 {
		return r.BaseCap
	}
	return c.DefaultStrategicCap
}

// IsLand reports whether a tile height is above the water threshold.
func (c *Catalog) IsLand(height uint8) bool {
	return height >= c.LandHeight
}

// index builds the lookup maps and rejects duplicate ids.
func (c *Catalog) index() error {
	c.resourceIdx = make(map[string]int, len(c.Resources))
	for i, r := range c.Resources {
		if _, dup := c.resourceIdx[r.ID]; dup {
			return fmt.Errorf("duplicate resource %q", r.ID)
		}
		c.resourceIdx[r.ID] = i
	}
	c.improvementIdx = make(map[string]int, len(c.Improvements))
	for i, d := range c.Improvements {
		if _, dup := c.improvementIdx[d.ID]; dup {
			return fmt.Errorf("duplicate improvement %q", d.ID)
		}
		c.improvementIdx[d.ID] = i
	}
	c.techIdx = make(map[string]int, len(c.Techs))
	for i, t := range c.Techs {
		if _, dup := c.techIdx[t.ID]; dup {
			return fmt.Errorf("duplicate tech %q", t.ID)
		}
		c.techIdx[t.ID] = i
	}
	c.unitIdx = make(map[string]int, len(c.Units))
	for i, u := range c.Units {
		if _, dup := c.unitIdx[u.ID]; dup {
			return fmt.Errorf("duplicate unit %q", u.ID)
		}
		c.unitIdx[u.ID] = i
	}
	return nil
}

// Validate checks cross references between the tables.
func (c *Catalog) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.SpawnDensity < 0 || c.SpawnDensity > 1 {
		add("spawn_density %v outside [0,1]", c.SpawnDensity)
	}
	for _, id := range c.BaselineTechs {
		if _, ok := c.techIdx[id]; !ok {
			add("baseline tech %q is not defined", id)
		}
	}

	for _, r := range c.Resources {
		if r.ID == "" {
			add("resource with empty id")
			continue
		}
		if !r.Category.Valid() {
			add("resource %q: invalid category", r.ID)
		}
		if r.Spawn.RarityWeight < 0 || r.Spawn.RarityWeight > 1 {
			add("resource %q: rarity_weight %v outside [0,1]", r.ID, r.Spawn.RarityWeight)
		}
		if r.Spawn.MinHeight > r.Spawn.MaxHeight {
			add("resource %q: min_height above max_height", r.ID)
		}
		if r.RevealTech != "" {
			if _, ok := c.techIdx[r.RevealTech]; !ok {
				add("resource %q: unknown reveal tech %q", r.ID, r.RevealTech)
			}
		}
		imp, ok := c.Improvement(r.ImprovementRequired)
		switch {
		case !ok:
			add("resource %q: unknown improvement %q", r.ID, r.ImprovementRequired)
		case !imp.Accepts(r.ID):
			add("resource %q: improvement %q does not list it", r.ID, imp.ID)
		}
		if r.Category == Strategic && r.PerTurnIncome < 0 {
			add("resource %q: negative per_turn_income", r.ID)
		}
	}

	for _, d := range c.Improvements {
		for _, cat := range d.ValidCategories {
			if !cat.Valid() {
				add("improvement %q: invalid category", d.ID)
			}
		}
		for _, rid := range d.ValidResources {
			if _, ok := c.resourceIdx[rid]; !ok {
				add("improvement %q: unknown resource %q", d.ID, rid)
			}
		}
	}

	for _, t := range c.Techs {
		for _, rid := range t.Reveals {
			if _, ok := c.resourceIdx[rid]; !ok {
				add("tech %q: unknown resource %q", t.ID, rid)
			}
		}
	}

	for _, u := range c.Units {
		for rid, amount := range u.Strategic {
			r, ok := c.Resource(rid)
			if !ok || r.Category != Strategic {
				add("unit %q: %q is not a strategic resource", u.ID, rid)
			}
			if amount < 0 {
				add("unit %q: negative cost for %q", u.ID, rid)
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid catalog: %s", strings.Join(problems, "; "))
	}
	return nil
}
