package rushhour

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/codec"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/events"
)

// PuzzleName identifies this puzzle in events and logs
const PuzzleName = "rush_hour"

const size = codec.VehicleBoardSize

// Config holds engine construction parameters. Board wins over Catalog.
type Config struct {
	Board string
	// OptimalSteps annotates an explicit Board with a known solution length
	OptimalSteps *int
	Catalog      codec.Catalog
	// Rng picks the catalog entry; nil seeds from the clock
	Rng       *rand.Rand
	EnvID     string
	Logger    zerolog.Logger
	Publisher events.Publisher
}

// Action slides the piece at index Piece one cell in Direction
type Action struct {
	Piece     int
	Direction core.Direction
}

// Observation is a 6x6 snapshot of the grid, owned by the caller
type Observation [][]byte

func (o Observation) String() string {
	rows := make([]string, len(o))
	for i, row := range o {
		rows[i] = string(row)
	}
	return strings.Join(rows, "\n")
}

// Info carries auxiliary step data
type Info struct {
	// OptimalSteps is nil when the instance has no known solution length
	OptimalSteps *int
	Steps        int
	Moved        bool
}

// StepResult is the outcome of a single action
type StepResult struct {
	Observation Observation
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        Info
}

// Engine is a single Rush Hour instance. It is not safe for concurrent use.
type Engine struct {
	layout       *codec.VehicleLayout
	cells        []byte
	episode      core.Episode
	optimalSteps *int
	envID        string
	logger       zerolog.Logger
	publisher    events.Publisher
}

// NewEngine decodes the configured board, or draws one from the catalog,
// and leaves it ready to play.
func NewEngine(cfg Config) (*Engine, error) {
	board := cfg.Board
	optimal := cfg.OptimalSteps
	if board == "" {
		if len(cfg.Catalog) == 0 {
			return nil, fmt.Errorf("%w: no board description and no catalog", core.ErrInvalidConfig)
		}
		rng := cfg.Rng
		if rng == nil {
			rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		entry, err := cfg.Catalog.Random(rng)
		if err != nil {
			return nil, err
		}
		board = entry.Board
		steps := entry.OptimalSteps
		optimal = &steps
	}

	layout, err := codec.DecodeVehicleBoard(board)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		layout:       layout,
		optimalSteps: optimal,
		envID:        cfg.EnvID,
		logger: cfg.Logger.With().
			Str("component", "rush_hour_engine").
			Str("env_id", cfg.EnvID).
			Logger(),
		publisher: cfg.Publisher,
	}
	e.restore()
	return e, nil
}

// Reset restores the initial board and starts a new episode
func (e *Engine) Reset() (Observation, Info, error) {
	e.restore()
	e.logger.Info().Str("board", e.layout.Description).Msg("Episode reset")
	e.publish(events.NewEpisodeResetEvent(e.envID, PuzzleName, e.layout.Description))
	return e.Grid(), e.info(false), nil
}

func (e *Engine) restore() {
	e.cells = append([]byte(nil), e.layout.Cells...)
	e.episode.Begin()
}

// Step slides one piece. Blocked moves and moves across the piece's axis
// leave the grid unchanged but still count as a step.
func (e *Engine) Step(a Action) (StepResult, error) {
	if a.Piece < 0 || a.Piece >= len(e.layout.Pieces) {
		return StepResult{}, fmt.Errorf("%w: piece index %d outside 0..%d", core.ErrInvalidAction, a.Piece, len(e.layout.Pieces)-1)
	}
	if !a.Direction.IsValid() {
		return StepResult{}, fmt.Errorf("%w: direction %d outside 0..%d", core.ErrInvalidAction, int(a.Direction), core.NumDirections-1)
	}

	piece := e.layout.Pieces[a.Piece]
	label := fmt.Sprintf("%c %s", piece.ID, a.Direction)

	if e.episode.Over() {
		e.logger.Debug().Str("action", label).Msg("Step after episode end ignored")
		e.publish(events.NewStepIgnoredEvent(e.envID, PuzzleName, label, e.episode.Steps))
		return e.result(0, false), nil
	}

	moved := e.slide(piece, a.Direction)
	e.episode.Steps++
	e.episode.Terminated = e.IsSolved()

	reward := -1.0
	if e.episode.Terminated {
		reward = 0
	}

	e.logger.Debug().
		Str("action", label).
		Bool("moved", moved).
		Int("step", e.episode.Steps).
		Msg("Step applied")
	e.publish(events.NewStepAppliedEvent(e.envID, PuzzleName, label, moved, reward,
		e.episode.Steps, e.episode.Terminated, false))

	if e.episode.Terminated {
		e.logger.Info().Int("steps", e.episode.Steps).Msg("Main car reached the exit")
		e.publish(events.NewEpisodeEndedEvent(e.envID, PuzzleName, e.episode.Steps, true))
	}

	return e.result(reward, moved), nil
}

// slide shifts every cell of the piece by one. The grid is only written
// once all destinations are known to be free.
func (e *Engine) slide(piece codec.Piece, d core.Direction) bool {
	if !piece.Orientation.Allows(d) {
		return false
	}
	positions := e.Positions(piece.ID)
	if len(positions) == 0 {
		return false
	}

	dest := make([]core.Coordinate, len(positions))
	for i, pos := range positions {
		next := pos.Move(d)
		if !next.IsValid(size, size) {
			return false
		}
		cell := e.cells[next.ToIndex(size)]
		if cell != piece.ID && cell != codec.EmptyCell {
			return false
		}
		dest[i] = next
	}

	for _, pos := range positions {
		e.cells[pos.ToIndex(size)] = codec.EmptyCell
	}
	for _, pos := range dest {
		e.cells[pos.ToIndex(size)] = piece.ID
	}
	return true
}

func (e *Engine) result(reward float64, moved bool) StepResult {
	return StepResult{
		Observation: e.Grid(),
		Reward:      reward,
		Terminated:  e.episode.Terminated,
		Truncated:   e.episode.Truncated,
		Info:        e.info(moved),
	}
}

func (e *Engine) info(moved bool) Info {
	return Info{
		OptimalSteps: e.optimalSteps,
		Steps:        e.episode.Steps,
		Moved:        moved,
	}
}

func (e *Engine) publish(event events.Event) {
	if e.publisher != nil {
		e.publisher.Publish(event)
	}
}

// IsSolved reports whether the main car occupies the exit cell
func (e *Engine) IsSolved() bool {
	return e.cells[codec.ExitCell.ToIndex(size)] == codec.MainCar
}

// Pieces returns the pieces in action-index order
func (e *Engine) Pieces() []codec.Piece {
	return append([]codec.Piece(nil), e.layout.Pieces...)
}

// Orientation returns the fixed axis of piece id
func (e *Engine) Orientation(id byte) (codec.Orientation, bool) {
	i := e.layout.PieceIndex(id)
	if i < 0 {
		return 0, false
	}
	return e.layout.Pieces[i].Orientation, true
}

// Positions returns the cells currently occupied by id, in row-major order
func (e *Engine) Positions(id byte) []core.Coordinate {
	var positions []core.Coordinate
	for i, cell := range e.cells {
		if cell == id {
			positions = append(positions, core.FromIndex(i, size))
		}
	}
	return positions
}

// Grid returns a copy of the grid
func (e *Engine) Grid() Observation {
	grid := make(Observation, size)
	for r := range grid {
		grid[r] = append([]byte(nil), e.cells[r*size:(r+1)*size]...)
	}
	return grid
}

// Description returns the initial board description
func (e *Engine) Description() string {
	return e.layout.Description
}

// Current encodes the live grid in board description format
func (e *Engine) Current() string {
	return string(e.cells)
}

// OptimalSteps returns the known solution length, or nil
func (e *Engine) OptimalSteps() *int {
	return e.optimalSteps
}

// Episode returns the current counters and flags
func (e *Engine) Episode() core.Episode {
	return e.episode
}
