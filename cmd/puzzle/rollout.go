package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/config"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/experience"
)

func rolloutCommand() *cli.Command {
	return &cli.Command{
		Name:  "rollout",
		Usage: "run random-agent episodes and report their returns",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env", Value: env.SlidingPuzzleID, Usage: "environment id"},
			&cli.IntFlag{Name: "episodes", Value: 10, Usage: "number of episodes"},
			&cli.IntFlag{Name: "max-steps", Value: 1000, Usage: "step cap per episode, on top of any env step limit"},
			&cli.Int64Flag{Name: "seed", Value: 1, Usage: "seed for the agent and the environment"},
			&cli.StringFlag{Name: "board", Usage: "Rush Hour board description (empty uses config)"},
			&cli.StringFlag{Name: "out", Usage: "directory to write experiences to as JSONL (empty keeps them in memory)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.String("env")
			opts := envOptions(name, cmd.Int64("seed"))
			if board := cmd.String("board"); board != "" {
				opts.Board = board
				opts.CatalogPath = ""
			}

			collector, err := rolloutCollector(config.Get().Experience, cmd.String("out"))
			if err != nil {
				return err
			}
			opts.Collector = collector

			e, err := env.Make(name, opts)
			if err != nil {
				_ = collector.Close(ctx)
				return err
			}

			r := rollout{
				env:      e,
				rng:      rand.New(rand.NewSource(cmd.Int64("seed"))),
				maxSteps: cmd.Int("max-steps"),
				out:      cmd.Root().Writer,
			}
			summary, runErr := r.run(ctx, cmd.Int("episodes"))

			stats := collector.Buffer().Stats()
			if err := collector.Close(ctx); err != nil && runErr == nil {
				runErr = err
			}
			if runErr != nil {
				return runErr
			}
			fmt.Fprintf(r.out, "solved %d/%d episodes, mean return %g, %d experiences recorded\n",
				summary.solved, summary.episodes, summary.meanReturn(), stats.TotalAdded)
			return nil
		},
	}
}

func rolloutCollector(c config.ExperienceConfig, outDir string) (*experience.Collector, error) {
	pc := experience.PersistenceConfig{Type: experience.PersistenceTypeNone}
	batchSize := 0
	if outDir != "" {
		pc = experience.PersistenceConfig{
			Type:        experience.PersistenceTypeFile,
			BaseDir:     outDir,
			MaxFileSize: c.Persistence.MaxFileSize,
			BatchSize:   c.Persistence.BatchSize,
		}
		batchSize = c.Persistence.BatchSize
	}
	persistence, err := experience.NewPersistenceLayer(pc, log.Logger)
	if err != nil {
		return nil, err
	}
	return experience.NewCollector(experience.NewBuffer(c.BufferCapacity, log.Logger), persistence, batchSize, log.Logger), nil
}

// rollout plays uniformly random actions
type rollout struct {
	env      env.Environment
	rng      *rand.Rand
	maxSteps int
	out      io.Writer
}

type rolloutSummary struct {
	episodes    int
	solved      int
	totalReturn float64
}

func (s rolloutSummary) meanReturn() float64 {
	if s.episodes == 0 {
		return 0
	}
	return s.totalReturn / float64(s.episodes)
}

func (r rollout) run(ctx context.Context, episodes int) (rolloutSummary, error) {
	var summary rolloutSummary
	for ep := 0; ep < episodes; ep++ {
		start := time.Now()
		if _, _, err := r.env.Reset(ctx, env.ResetOptions{}); err != nil {
			return summary, err
		}

		ret := 0.0
		var last env.StepResult
		steps := 0
		for steps < r.maxSteps {
			res, err := r.env.Step(ctx, r.randomAction())
			if err != nil {
				return summary, err
			}
			steps++
			ret += res.Reward
			last = res
			if res.Terminated || res.Truncated {
				break
			}
		}

		summary.episodes++
		summary.totalReturn += ret
		if last.Terminated {
			summary.solved++
		}
		fmt.Fprintf(r.out, "episode %d: steps=%d return=%g solved=%t truncated=%t\n",
			ep, steps, ret, last.Terminated, last.Truncated)

		log.Debug().
			Str("env", r.env.Name()).
			Int("episode", ep).
			Int("steps", steps).
			Dur("duration", time.Since(start)).
			Msg("Episode finished")
	}
	return summary, nil
}

func (r rollout) randomAction() []int {
	space := r.env.ActionSpace()
	action := make([]int, len(space))
	for i, n := range space {
		action[i] = r.rng.Intn(n)
	}
	return action
}
