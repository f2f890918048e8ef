package env

import (
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/config"
)

// OptionsFromConfig maps the configured puzzle defaults onto Options for
// the named environment. Per-request values are applied on top by callers.
func OptionsFromConfig(c *config.Config, name string) Options {
	var opts Options
	switch name {
	case SlidingPuzzleID:
		s := c.Puzzles.Sliding
		opts.Tiles = s.NPuzzle
		opts.StepLimit = s.StepLimit
		opts.SolvableOnly = s.SolvableOnly
		opts.ImagePath = s.ImagePath
		opts.ImageSize = s.ImageSize
		opts.FilterEffect = s.FilterEffect
	case RushHourID:
		r := c.Puzzles.RushHour
		opts.Board = r.BoardDescription
		opts.CatalogPath = r.CatalogPath
		opts.CellSize = r.CellSize
	}
	return opts
}
