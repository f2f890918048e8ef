package render

import (
	"fmt"
	"strings"
)

// SlidingText draws the grid with right-aligned tile labels and "." for
// the blank, one row per line.
func SlidingText(grid [][]int) string {
	var sb strings.Builder
	for _, row := range grid {
		cells := make([]string, len(row))
		for c, t := range row {
			if t == 0 {
				cells[c] = "  ."
			} else {
				cells[c] = fmt.Sprintf("%3d", t)
			}
		}
		sb.WriteString(strings.Join(cells, " "))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// VehicleText draws the grid symbols separated by spaces, one row per line
func VehicleText(grid [][]byte) string {
	var sb strings.Builder
	for _, row := range grid {
		for c, b := range row {
			if c > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteByte(b)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
