package catalog

import "fmt"

// Category is the closed set of resource kinds.
type Category uint8

const (
	Bonus     Category = iota + 1 // Tile yield only
	Luxury                        // Amenities when owned; duplicates are tradable surplus
	Strategic                     // Capped stockpile, spent on units
)

// String returns the lower-case category name.
func (c Category) String() string {
	switch c {
	case Bonus:
		return "bonus"
	case Luxury:
		return "luxury"
	case Strategic:
		return "strategic"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	return c >= Bonus && c <= Strategic
}

// ParseCategory converts a category name.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "bonus":
		return Bonus, nil
	case "luxury":
		return Luxury, nil
	case "strategic":
		return Strategic, nil
	}
	return 0, fmt.Errorf("unknown resource category %q", s)
}

// MarshalText implements encoding.TextMarshaler (JSON and YAML).
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler (JSON and YAML).
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
