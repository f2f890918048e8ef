package codec

import (
	"fmt"
	"math/rand"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
)

// Permutation returns a deterministic arrangement of the tiles 0..n-1 for
// a given seed. Engines take one as a dependency so tests can pin layouts.
type Permutation func(seed int64, n int) []int

// GridSide returns m such that m*m == cells, or false when cells is not a
// perfect square of at least 4.
func GridSide(cells int) (int, bool) {
	if cells < 4 {
		return 0, false
	}
	m := 1
	for m*m < cells {
		m++
	}
	return m, m*m == cells
}

// IdentityTiles returns the solved arrangement 0,1,...,n-1
func IdentityTiles(n int) []int {
	tiles := make([]int, n)
	for i := range tiles {
		tiles[i] = i
	}
	return tiles
}

// SeededPermutation is a uniform Fisher-Yates shuffle of the identity
// arrangement driven by a source seeded with seed.
func SeededPermutation(seed int64, n int) []int {
	tiles := IdentityTiles(n)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) {
		tiles[i], tiles[j] = tiles[j], tiles[i]
	})
	return tiles
}

// SolvablePermutation shuffles like SeededPermutation and, when the result
// is unreachable from the solved state, swaps the first two non-blank tiles
// to flip the permutation parity.
func SolvablePermutation(seed int64, n int) []int {
	tiles := SeededPermutation(seed, n)
	side, ok := GridSide(n)
	if !ok || IsSolvable(tiles, side) {
		return tiles
	}

	first := -1
	for i, t := range tiles {
		if t == 0 {
			continue
		}
		if first < 0 {
			first = i
			continue
		}
		tiles[first], tiles[i] = tiles[i], tiles[first]
		break
	}
	return tiles
}

// IsSolvable reports whether tiles (row-major on a size x size grid) can
// reach the identity arrangement, where the blank rests at the top-left.
// Every slide is one transposition and moves the blank one cell, so the
// permutation parity must equal the parity of the blank's distance from
// its solved cell.
func IsSolvable(tiles []int, size int) bool {
	inversions := 0
	for i := 0; i < len(tiles); i++ {
		for j := i + 1; j < len(tiles); j++ {
			if tiles[i] > tiles[j] {
				inversions++
			}
		}
	}

	blankDistance := 0
	for i, t := range tiles {
		if t == 0 {
			blankDistance = core.FromIndex(i, size).DistanceTo(core.Coordinate{})
			break
		}
	}
	return inversions%2 == blankDistance%2
}

// ValidateTiles checks that tiles is a permutation of 0..n-1
func ValidateTiles(tiles []int, n int) error {
	if len(tiles) != n {
		return fmt.Errorf("%w: expected %d tiles, got %d", core.ErrInvalidBoardDescription, n, len(tiles))
	}
	seen := make([]bool, n)
	for i, t := range tiles {
		if t < 0 || t >= n {
			return fmt.Errorf("%w: tile %d at index %d is outside 0..%d", core.ErrInvalidBoardDescription, t, i, n-1)
		}
		if seen[t] {
			return fmt.Errorf("%w: tile %d appears more than once", core.ErrInvalidBoardDescription, t)
		}
		seen[t] = true
	}
	return nil
}
