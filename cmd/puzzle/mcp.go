package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/config"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/session"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/transport/mcp"
)

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "serve the environments as MCP tools over stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Get()
			manager := session.NewManager(session.Config{
				MaxEnvs: cfg.Server.GRPCServer.MaxEnvs,
				Logger:  log.Logger,
			})
			defer manager.Stop()

			defaults := func(name string) env.Options {
				return env.OptionsFromConfig(cfg, name)
			}
			log.Info().Int("max_envs", manager.MaxEnvs()).Msg("Serving MCP over stdio")
			return mcp.NewServer(manager, defaults, log.Logger).ServeStdio()
		},
	}
}
