package env

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/codec"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/sliding"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/render"
)

type slidingEnv struct {
	recorder
	id        string
	engine    *sliding.Engine
	rng       *rand.Rand
	imagePath string
	imageSize int
	filter    *render.Filter
	tiles     *render.TileSet
	logger    zerolog.Logger
}

func newSlidingEnv(id string, opts Options) (Environment, error) {
	shuffle := codec.SeededPermutation
	if opts.SolvableOnly {
		shuffle = codec.SolvablePermutation
	}
	engine, err := sliding.NewEngine(sliding.Config{
		Tiles:     opts.Tiles,
		StepLimit: opts.StepLimit,
		Shuffle:   shuffle,
		EnvID:     id,
		Logger:    opts.Logger,
		Publisher: opts.Publisher,
	})
	if err != nil {
		return nil, err
	}

	imageSize := opts.ImageSize
	if imageSize == 0 {
		imageSize = engine.Size() * 100
	}
	if imageSize%engine.Size() != 0 {
		return nil, fmt.Errorf("%w: image size %d is not divisible by %d", core.ErrInvalidConfig, imageSize, engine.Size())
	}

	filter, err := render.ParseFilter(opts.FilterEffect)
	if err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &slidingEnv{
		recorder:  recorder{collector: opts.Collector},
		id:        id,
		engine:    engine,
		rng:       rand.New(rand.NewSource(seed)),
		imagePath: opts.ImagePath,
		imageSize: imageSize,
		filter:    filter,
		logger:    opts.Logger.With().Str("component", "sliding_env").Str("env_id", id).Logger(),
	}, nil
}

func (e *slidingEnv) ID() string            { return e.id }
func (e *slidingEnv) Name() string          { return SlidingPuzzleID }
func (e *slidingEnv) ActionSpace() []int    { return []int{core.NumDirections} }
func (e *slidingEnv) Episode() core.Episode { return e.engine.Episode() }

func (e *slidingEnv) Reset(ctx context.Context, opts ResetOptions) (Observation, Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		grid sliding.Observation
		info sliding.Info
		err  error
	)
	if len(opts.Tiles) > 0 {
		grid, info, err = e.engine.ResetTo(opts.Tiles)
	} else {
		seed := e.rng.Int63()
		if opts.Seed != nil {
			seed = *opts.Seed
		}
		grid, info, err = e.engine.Reset(seed)
	}
	if err != nil {
		return nil, nil, err
	}
	return slidingObservation(grid), slidingInfo(info), nil
}

func (e *slidingEnv) Step(ctx context.Context, action []int) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	if len(action) != 1 {
		return StepResult{}, fmt.Errorf("%w: sliding puzzle takes one direction, got %v", core.ErrInvalidAction, action)
	}

	before := e.engine.Episode()
	prev := slidingObservation(e.engine.Grid())
	res, err := e.engine.Step(core.Direction(action[0]))
	if err != nil {
		return StepResult{}, err
	}

	out := StepResult{
		Observation: slidingObservation(res.Observation),
		Reward:      res.Reward,
		Terminated:  res.Terminated,
		Truncated:   res.Truncated,
		Info:        slidingInfo(res.Info),
	}
	if err := e.record(ctx, e, before, prev, action, out); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to record experience")
	}
	return out, nil
}

func (e *slidingEnv) Render(mode RenderMode) (Frame, error) {
	grid := e.engine.Grid()
	switch mode {
	case RenderText:
		return Frame{Text: render.SlidingText(grid)}, nil
	case RenderRGB, RenderGoal, RenderOriginal:
		tiles, err := e.tileSet()
		if err != nil {
			return Frame{}, err
		}
		switch mode {
		case RenderGoal:
			return Frame{Image: tiles.Goal()}, nil
		case RenderOriginal:
			return Frame{Image: tiles.Original()}, nil
		}
		return Frame{Image: tiles.Compose(grid)}, nil
	}
	return Frame{}, fmt.Errorf("%w: %q", ErrUnsupportedRenderMode, mode)
}

func (e *slidingEnv) tileSet() (*render.TileSet, error) {
	if e.tiles != nil {
		return e.tiles, nil
	}

	var src image.Image = render.NumberedSource(e.engine.Size(), e.imageSize)
	if e.imagePath != "" {
		img, err := render.LoadImage(e.imagePath)
		if err != nil {
			return nil, err
		}
		src = img
	}
	tiles, err := render.NewTileSet(src, e.engine.Size(), e.imageSize, e.filter)
	if err != nil {
		return nil, err
	}
	e.tiles = tiles
	return tiles, nil
}

func slidingObservation(grid sliding.Observation) Observation {
	obs := make(Observation, len(grid))
	for r, row := range grid {
		obs[r] = make([]string, len(row))
		for c, t := range row {
			obs[r][c] = strconv.Itoa(t)
		}
	}
	return obs
}

func slidingInfo(info sliding.Info) Info {
	return Info{
		"manhattan_distance": info.ManhattanDistance,
		"steps":              info.Steps,
	}
}
