package env

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/codec"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/rushhour"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/render"
)

type rushHourEnv struct {
	recorder
	id       string
	engine   *rushhour.Engine
	cellSize int
	logger   zerolog.Logger
}

func newRushHourEnv(id string, opts Options) (Environment, error) {
	catalog := opts.Catalog
	if opts.Board == "" && len(catalog) == 0 && opts.CatalogPath != "" {
		loaded, err := codec.LoadCatalog(opts.CatalogPath)
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	engine, err := rushhour.NewEngine(rushhour.Config{
		Board:        opts.Board,
		OptimalSteps: opts.OptimalSteps,
		Catalog:      catalog,
		Rng:          rand.New(rand.NewSource(seed)),
		EnvID:        id,
		Logger:       opts.Logger,
		Publisher:    opts.Publisher,
	})
	if err != nil {
		return nil, err
	}

	return &rushHourEnv{
		recorder: recorder{collector: opts.Collector},
		id:       id,
		engine:   engine,
		cellSize: opts.CellSize,
		logger:   opts.Logger.With().Str("component", "rush_hour_env").Str("env_id", id).Logger(),
	}, nil
}

func (e *rushHourEnv) ID() string            { return e.id }
func (e *rushHourEnv) Name() string          { return RushHourID }
func (e *rushHourEnv) Episode() core.Episode { return e.engine.Episode() }

func (e *rushHourEnv) ActionSpace() []int {
	return []int{len(e.engine.Pieces()), core.NumDirections}
}

// Reset ignores options; Rush Hour always restores its initial board
func (e *rushHourEnv) Reset(ctx context.Context, _ ResetOptions) (Observation, Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	grid, info, err := e.engine.Reset()
	if err != nil {
		return nil, nil, err
	}
	return vehicleObservation(grid), vehicleInfo(info), nil
}

func (e *rushHourEnv) Step(ctx context.Context, action []int) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	if len(action) != 2 {
		return StepResult{}, fmt.Errorf("%w: rush hour takes (piece, direction), got %v", core.ErrInvalidAction, action)
	}

	before := e.engine.Episode()
	prev := vehicleObservation(e.engine.Grid())
	res, err := e.engine.Step(rushhour.Action{Piece: action[0], Direction: core.Direction(action[1])})
	if err != nil {
		return StepResult{}, err
	}

	out := StepResult{
		Observation: vehicleObservation(res.Observation),
		Reward:      res.Reward,
		Terminated:  res.Terminated,
		Truncated:   res.Truncated,
		Info:        vehicleInfo(res.Info),
	}
	if err := e.record(ctx, e, before, prev, action, out); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to record experience")
	}
	return out, nil
}

func (e *rushHourEnv) Render(mode RenderMode) (Frame, error) {
	grid := e.engine.Grid()
	switch mode {
	case RenderText:
		return Frame{Text: render.VehicleText(grid)}, nil
	case RenderRGB:
		return Frame{Image: render.VehicleImage(grid, e.engine.Pieces(), e.cellSize)}, nil
	}
	return Frame{}, fmt.Errorf("%w: %q", ErrUnsupportedRenderMode, mode)
}

func vehicleObservation(grid rushhour.Observation) Observation {
	obs := make(Observation, len(grid))
	for r, row := range grid {
		obs[r] = make([]string, len(row))
		for c, b := range row {
			obs[r][c] = string(b)
		}
	}
	return obs
}

func vehicleInfo(info rushhour.Info) Info {
	out := Info{
		"num_steps_to_finish": nil,
		"steps":               info.Steps,
		"moved":               info.Moved,
	}
	if info.OptimalSteps != nil {
		out["num_steps_to_finish"] = *info.OptimalSteps
	}
	return out
}
