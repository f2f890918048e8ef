package core

import (
	"fmt"
	"strings"
)

// Direction is the encoded action component shared by both puzzles:
// 0 up, 1 right, 2 down, 3 left.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

// NumDirections is the size of the direction action space
const NumDirections = 4

var directionDeltas = [NumDirections]Coordinate{
	Up:    {Row: -1, Col: 0},
	Right: {Row: 0, Col: 1},
	Down:  {Row: 1, Col: 0},
	Left:  {Row: 0, Col: -1},
}

var directionNames = [NumDirections]string{"up", "right", "down", "left"}

// IsValid reports whether d is inside the declared action space
func (d Direction) IsValid() bool {
	return d >= Up && d <= Left
}

// Delta returns the row/col offset of one step in direction d.
// Callers must check IsValid first.
func (d Direction) Delta() Coordinate {
	return directionDeltas[d]
}

// Opposite returns the inverse direction
func (d Direction) Opposite() Direction {
	return (d + 2) % NumDirections
}

// IsVertical reports whether d moves along rows
func (d Direction) IsVertical() bool {
	return d == Up || d == Down
}

func (d Direction) String() string {
	if !d.IsValid() {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

// ParseDirection accepts a direction name, its first letter, or the
// w/a/s/d keys used by the terminal drivers.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "u", "w", "0":
		return Up, nil
	case "right", "r", "d", "1":
		return Right, nil
	case "down", "s", "2":
		return Down, nil
	case "left", "l", "a", "3":
		return Left, nil
	}
	return 0, fmt.Errorf("%w: unknown direction %q", ErrInvalidAction, s)
}
