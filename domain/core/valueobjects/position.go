package valueobjects

import "math"

// Position is a value object representing node coordinates in 2D space
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	const epsilon = 1e-9
	return math.Abs(p.X-other.X) < epsilon && math.Abs(p.Y-other.Y) < epsilon
}

// Midpoint calculates the midpoint between two positions
func (p Position) Midpoint(other Position) Position {
	return Position{
		X: (p.X + other.X) / 2,
		Y: (p.Y + other.Y) / 2,
	}
}

// IsFinite reports whether both coordinates are finite numbers
func (p Position) IsFinite() bool {
	return isValidCoordinate(p.X) && isValidCoordinate(p.Y)
}

// isValidCoordinate checks if a coordinate is a valid finite number
func isValidCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
