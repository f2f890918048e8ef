// Command puzzle drives the puzzle environments from a terminal.
//
// Subcommands:
//
//	sliding   play the sliding tile puzzle with w/a/s/d
//	rushhour  play Rush Hour by entering piece and direction numbers
//	rollout   run random-agent episodes and optionally persist experiences
//	mcp       serve the environments as MCP tools over stdio
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/config"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "puzzle",
		Usage: "play and roll out the visual puzzle environments",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to config file",
				Sources: cli.EnvVars("VPZ_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "log level (debug, info, warn, error)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			slidingCommand(),
			rushHourCommand(),
			rolloutCommand(),
			mcpCommand(),
		},
	}
}

// setup loads config and points logging at stderr, leaving stdout to the
// board and to the MCP protocol.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level, err := zerolog.ParseLevel(cmd.String("log-level"))
	if err != nil {
		return ctx, fmt.Errorf("invalid log level %q: %w", cmd.String("log-level"), err)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        cmd.Root().ErrWriter,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()

	if err := config.Init(cmd.String("config")); err != nil {
		return ctx, fmt.Errorf("failed to initialize config: %w", err)
	}
	return ctx, nil
}

// envOptions starts from the configured defaults for name
func envOptions(name string, seed int64) env.Options {
	opts := env.OptionsFromConfig(config.Get(), name)
	opts.Seed = seed
	opts.Logger = log.Logger
	return opts
}
