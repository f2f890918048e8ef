package sliding

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/codec"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/events"
)

// PuzzleName identifies this puzzle in events and logs
const PuzzleName = "sliding"

// DefaultTiles is the classic 15-puzzle
const DefaultTiles = 15

// Config holds engine construction parameters
type Config struct {
	// Tiles is n, the number of labelled tiles; n+1 must be a perfect square
	Tiles int
	// StepLimit truncates an episode after this many steps; 0 disables it
	StepLimit int
	// Shuffle produces the reset arrangement; nil uses codec.SeededPermutation
	Shuffle   codec.Permutation
	EnvID     string
	Logger    zerolog.Logger
	Publisher events.Publisher
}

// Observation is a row-major snapshot of the grid, owned by the caller
type Observation [][]int

// Info carries auxiliary step data
type Info struct {
	ManhattanDistance int
	Steps             int
}

// StepResult is the outcome of a single action
type StepResult struct {
	Observation Observation
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        Info
}

// Engine is a single sliding tile puzzle instance. It is not safe for
// concurrent use.
type Engine struct {
	size      int
	tiles     []int
	blank     core.Coordinate
	episode   core.Episode
	stepLimit int
	shuffle   codec.Permutation
	envID     string
	logger    zerolog.Logger
	publisher events.Publisher
}

// NewEngine builds an engine holding the solved grid. The episode starts
// closed, so Reset must be called before steps have any effect.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Tiles == 0 {
		cfg.Tiles = DefaultTiles
	}
	size, ok := codec.GridSide(cfg.Tiles + 1)
	if !ok {
		return nil, fmt.Errorf("%w: %d tiles do not fill a square grid", core.ErrInvalidConfig, cfg.Tiles)
	}
	if cfg.StepLimit < 0 {
		return nil, fmt.Errorf("%w: negative step limit %d", core.ErrInvalidConfig, cfg.StepLimit)
	}
	if cfg.Shuffle == nil {
		cfg.Shuffle = codec.SeededPermutation
	}
	e := &Engine{
		size:      size,
		tiles:     codec.IdentityTiles(size * size),
		stepLimit: cfg.StepLimit,
		shuffle:   cfg.Shuffle,
		envID:     cfg.EnvID,
		logger: cfg.Logger.With().
			Str("component", "sliding_engine").
			Str("env_id", cfg.EnvID).
			Int("size", size).
			Logger(),
		publisher: cfg.Publisher,
	}
	e.episode.Close()
	return e, nil
}

// Reset shuffles a fresh arrangement from seed and starts a new episode
func (e *Engine) Reset(seed int64) (Observation, Info, error) {
	tiles := e.shuffle(seed, len(e.tiles))
	if err := codec.ValidateTiles(tiles, len(e.tiles)); err != nil {
		return nil, Info{}, fmt.Errorf("shuffle returned a bad arrangement: %w", err)
	}
	e.load(tiles)
	e.logger.Info().Int64("seed", seed).Int("manhattan", e.ManhattanDistance()).Msg("Episode reset")
	return e.Grid(), e.info(), nil
}

// ResetTo starts a new episode from an explicit row-major arrangement
func (e *Engine) ResetTo(tiles []int) (Observation, Info, error) {
	if err := codec.ValidateTiles(tiles, len(e.tiles)); err != nil {
		return nil, Info{}, err
	}
	e.load(append([]int(nil), tiles...))
	e.logger.Info().Ints("tiles", tiles).Msg("Episode reset to explicit board")
	return e.Grid(), e.info(), nil
}

func (e *Engine) load(tiles []int) {
	e.tiles = tiles
	for i, t := range tiles {
		if t == 0 {
			e.blank = core.FromIndex(i, e.size)
			break
		}
	}
	e.episode.Begin()
	e.publish(events.NewEpisodeResetEvent(e.envID, PuzzleName, e.Description()))
}

// Step moves the blank one cell in direction d. A move off the grid leaves
// the board unchanged but still counts as a step.
func (e *Engine) Step(d core.Direction) (StepResult, error) {
	if !d.IsValid() {
		return StepResult{}, fmt.Errorf("%w: direction %d outside 0..%d", core.ErrInvalidAction, int(d), core.NumDirections-1)
	}

	if e.episode.Over() {
		e.logger.Debug().Stringer("direction", d).Msg("Step after episode end ignored")
		e.publish(events.NewStepIgnoredEvent(e.envID, PuzzleName, d.String(), e.episode.Steps))
		return e.result(0), nil
	}

	e.episode.Steps++
	moved := false
	target := e.blank.Move(d)
	if target.IsValid(e.size, e.size) {
		bi, ti := e.blank.ToIndex(e.size), target.ToIndex(e.size)
		e.tiles[bi], e.tiles[ti] = e.tiles[ti], e.tiles[bi]
		e.blank = target
		moved = true
	}

	e.episode.Terminated = e.IsSolved()
	e.episode.Truncated = e.stepLimit > 0 && e.episode.Steps >= e.stepLimit

	e.logger.Debug().
		Stringer("direction", d).
		Bool("moved", moved).
		Int("step", e.episode.Steps).
		Msg("Step applied")
	e.publish(events.NewStepAppliedEvent(e.envID, PuzzleName, d.String(), moved, -1,
		e.episode.Steps, e.episode.Terminated, e.episode.Truncated))

	if e.episode.Over() {
		e.logger.Info().
			Int("steps", e.episode.Steps).
			Bool("solved", e.episode.Terminated).
			Msg("Episode finished")
		e.publish(events.NewEpisodeEndedEvent(e.envID, PuzzleName, e.episode.Steps, e.episode.Terminated))
	}

	return e.result(-1), nil
}

func (e *Engine) result(reward float64) StepResult {
	return StepResult{
		Observation: e.Grid(),
		Reward:      reward,
		Terminated:  e.episode.Terminated,
		Truncated:   e.episode.Truncated,
		Info:        e.info(),
	}
}

func (e *Engine) info() Info {
	return Info{
		ManhattanDistance: e.ManhattanDistance(),
		Steps:             e.episode.Steps,
	}
}

func (e *Engine) publish(event events.Event) {
	if e.publisher != nil {
		e.publisher.Publish(event)
	}
}

// ManhattanDistance sums, over labelled tiles, the distance between each
// tile's cell and its solved cell. Tile k is solved at (k/m, k%m).
func (e *Engine) ManhattanDistance() int {
	total := 0
	for i, t := range e.tiles {
		if t == 0 {
			continue
		}
		total += core.FromIndex(i, e.size).DistanceTo(core.FromIndex(t, e.size))
	}
	return total
}

// IsSolved reports whether the grid equals the identity arrangement
func (e *Engine) IsSolved() bool {
	for i, t := range e.tiles {
		if t != i {
			return false
		}
	}
	return true
}

// Size returns the side length m of the grid
func (e *Engine) Size() int {
	return e.size
}

// Grid returns a copy of the grid
func (e *Engine) Grid() Observation {
	grid := make(Observation, e.size)
	for r := range grid {
		grid[r] = append([]int(nil), e.tiles[r*e.size:(r+1)*e.size]...)
	}
	return grid
}

// Blank returns the current position of tile 0
func (e *Engine) Blank() core.Coordinate {
	return e.blank
}

// Episode returns the current counters and flags
func (e *Engine) Episode() core.Episode {
	return e.episode
}

// Description renders the flat grid as space separated tile labels
func (e *Engine) Description() string {
	parts := make([]string, len(e.tiles))
	for i, t := range e.tiles {
		parts[i] = strconv.Itoa(t)
	}
	return strings.Join(parts, " ")
}
