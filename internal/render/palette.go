package render

import (
	"hash/fnv"
	"image/color"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/codec"
)

var (
	Black      = color.RGBA{0, 0, 0, 255}
	White      = color.RGBA{255, 255, 255, 255}
	MainCarRed = color.RGBA{255, 0, 0, 255}
)

// PieceColor returns a stable color for a board symbol. Empty cells are
// white, walls black and the main car red; every other vehicle gets a
// color hashed from its id so frames are reproducible.
func PieceColor(symbol byte) color.RGBA {
	switch symbol {
	case codec.EmptyCell:
		return White
	case codec.WallCell:
		return Black
	case codec.MainCar:
		return MainCarRed
	}

	h := fnv.New32a()
	h.Write([]byte{symbol})
	sum := h.Sum32()
	// keep channels in the mid range so labels stay readable
	return color.RGBA{
		R: uint8(64 + sum%160),
		G: uint8(64 + (sum>>8)%160),
		B: uint8(64 + (sum>>16)%160),
		A: 255,
	}
}
