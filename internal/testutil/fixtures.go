package testutil

import (
	"fmt"
	"strings"
)

// Rush Hour boards shared by engine, transport and UI tests.
const (
	// A sits at row 2 columns 1-2 with I blocking column 3
	SampleBoard = "ooxoKoCCoIKoGAAIKoGoHJDDEEHJoLoFFFoL"
	// A sits at row 2 columns 3-4 with the exit free, one move from solved
	NearWinBoard = "oooooooooooooooAAoooooCoBBBoCooooooo"
)

// Catalog returns catalog text listing boards in order, numbering their
// optimal step counts from 1.
func Catalog(boards ...string) string {
	var sb strings.Builder
	for i, b := range boards {
		fmt.Fprintf(&sb, "%d %s %d\n", i+1, b, len(boards))
	}
	return sb.String()
}

// FixedPermutation returns a permutation function that always yields tiles,
// regardless of seed.
func FixedPermutation(tiles []int) func(seed int64, n int) []int {
	return func(int64, int) []int {
		out := make([]int, len(tiles))
		copy(out, tiles)
		return out
	}
}
