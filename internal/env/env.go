package env

import (
	"context"
	"errors"
	"image"
	"sort"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
)

// RenderMode selects the projection returned by Render
type RenderMode string

// RenderGoal and RenderOriginal are image views of the sliding puzzle:
// the solved picture, and the scaled source before any filter.
const (
	RenderText     RenderMode = "text"
	RenderRGB      RenderMode = "rgb"
	RenderGoal     RenderMode = "goal"
	RenderOriginal RenderMode = "original"
)

// ErrUnsupportedRenderMode is returned by Render for a mode the puzzle
// has no view for
var ErrUnsupportedRenderMode = errors.New("unsupported render mode")

// ParseRenderMode accepts the mode names used by the drivers
func ParseRenderMode(s string) (RenderMode, bool) {
	switch s {
	case "", "text", "ascii", "ansi":
		return RenderText, true
	case "rgb", "rgb_array", "image":
		return RenderRGB, true
	case "goal", "goal_image":
		return RenderGoal, true
	case "original", "original_image":
		return RenderOriginal, true
	}
	return "", false
}

// Observation is a grid of cell symbols. Sliding puzzle tiles are decimal
// labels and Rush Hour cells are single characters.
type Observation [][]string

// PieceSymbols lists the Rush Hour piece symbols present in obs in the
// order the action space indexes them.
func PieceSymbols(obs Observation) []string {
	seen := map[string]bool{}
	var symbols []string
	for _, row := range obs {
		for _, cell := range row {
			if cell == "o" || cell == "x" || seen[cell] {
				continue
			}
			seen[cell] = true
			symbols = append(symbols, cell)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// Info carries per-puzzle progress metrics keyed like the gym info dict
type Info map[string]any

// StepResult is the generic episode return tuple
type StepResult struct {
	Observation Observation
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        Info
}

// ResetOptions customise a reset. Seed drives the sliding puzzle shuffle;
// Tiles replaces the shuffle with an explicit row-major board.
type ResetOptions struct {
	Seed  *int64
	Tiles []int
}

// Frame is a rendered view of the current grid
type Frame struct {
	Text  string
	Image *image.RGBA
}

// Environment is the step/reset contract both puzzles expose
type Environment interface {
	// ID is the unique instance identifier
	ID() string
	// Name is the registry id the instance was made from
	Name() string
	// ActionSpace lists the size of each action component
	ActionSpace() []int
	Reset(ctx context.Context, opts ResetOptions) (Observation, Info, error)
	Step(ctx context.Context, action []int) (StepResult, error)
	Render(mode RenderMode) (Frame, error)
	Episode() core.Episode
}
