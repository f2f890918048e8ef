package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/config"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/codec"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/ui"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/ui/play"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	puzzle := flag.String("puzzle", "", "Environment to play (n_Puzzle-v0 or RushHour-v0; empty to use config default)")
	tiles := flag.Int("tiles", 0, "Sliding puzzle tile count (0 to use config default)")
	board := flag.String("board", "", "Rush Hour board description (empty to use config default)")
	seed := flag.Int64("seed", 0, "Seed for shuffles and catalog picks (0 uses the clock)")
	filter := flag.String("filter", "", "Sliding puzzle image filter, e.g. EMBOSS (empty to use config default)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	cfg := config.Get()
	if !cfg.Development.VerboseLogging {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	name := cfg.UI.Puzzle
	if *puzzle != "" {
		name = *puzzle
	}

	opts := env.OptionsFromConfig(cfg, name)
	opts.Logger = log.Logger
	opts.Seed = *seed
	if *tiles > 0 {
		opts.Tiles = *tiles
		opts.ImageSize = 0
	}
	if *filter != "" {
		opts.FilterEffect = *filter
	}
	if *board != "" {
		opts.Board = *board
		opts.CatalogPath = ""
	}
	if name == env.SlidingPuzzleID && opts.ImageSize == 0 {
		if side, ok := codec.GridSide(opts.Tiles + 1); ok {
			opts.ImageSize = side * cfg.UI.TileSize
		}
	}

	e, err := env.Make(name, opts)
	if err != nil {
		log.Fatal().Err(err).Str("puzzle", name).Msg("Failed to create environment")
	}

	controller, err := play.NewController(context.Background(), e)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start episode")
	}

	game, err := ui.NewPuzzleGame(controller, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create UI")
	}

	width, height := game.WindowSize()
	ebiten.SetWindowSize(max(width, cfg.UI.Window.Width), max(height, cfg.UI.Window.Height))
	ebiten.SetWindowTitle(cfg.UI.Window.Title + " - " + name)

	if err := ebiten.RunGame(game); err != nil {
		log.Fatal().Err(err).Msg("UI exited with error")
	}
}
