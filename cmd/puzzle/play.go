package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
)

// keys accepted by the sliding puzzle prompt
var slidingKeys = map[string]core.Direction{
	"w": core.Up,
	"d": core.Right,
	"s": core.Down,
	"a": core.Left,
}

func slidingCommand() *cli.Command {
	return &cli.Command{
		Name:  "sliding",
		Usage: "play the sliding tile puzzle (w: up, d: right, s: down, a: left, q: quit)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "tiles", Usage: "number of tiles, one less than a square (0 uses config)"},
			&cli.IntFlag{Name: "step-limit", Usage: "truncate after this many steps (0 uses config)"},
			&cli.Int64Flag{Name: "seed", Usage: "shuffle seed (0 uses the clock)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts := envOptions(env.SlidingPuzzleID, cmd.Int64("seed"))
			if tiles := cmd.Int("tiles"); tiles > 0 {
				opts.Tiles = tiles
				opts.ImageSize = 0
			}
			if limit := cmd.Int("step-limit"); limit > 0 {
				opts.StepLimit = limit
			}
			e, err := env.Make(env.SlidingPuzzleID, opts)
			if err != nil {
				return err
			}
			return playSliding(ctx, e, cmd.Root().Reader, cmd.Root().Writer)
		},
	}
}

func rushHourCommand() *cli.Command {
	return &cli.Command{
		Name:  "rushhour",
		Usage: "play Rush Hour by entering a piece index and a direction (0 up, 1 right, 2 down, 3 left)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "board", Usage: "36-character board description (empty uses config)"},
			&cli.StringFlag{Name: "catalog", Usage: "catalog file to pick a board from (empty uses config)"},
			&cli.Int64Flag{Name: "seed", Usage: "catalog pick seed (0 uses the clock)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts := envOptions(env.RushHourID, cmd.Int64("seed"))
			if board := cmd.String("board"); board != "" {
				opts.Board = board
				opts.CatalogPath = ""
			}
			if catalog := cmd.String("catalog"); catalog != "" {
				opts.CatalogPath = catalog
				opts.Board = ""
			}
			e, err := env.Make(env.RushHourID, opts)
			if err != nil {
				return err
			}
			return playRushHour(ctx, e, cmd.Root().Reader, cmd.Root().Writer)
		},
	}
}

// prompter reads one trimmed line per question
type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{scanner: bufio.NewScanner(in), out: out}
}

// ask returns io.EOF once input runs out
func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func (p *prompter) askInt(question string) (int, error) {
	for {
		answer, err := p.ask(question)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err == nil {
			return n, nil
		}
		fmt.Fprintln(p.out, "Please enter a number.")
	}
}

func playSliding(ctx context.Context, e env.Environment, in io.Reader, out io.Writer) error {
	obs, info, err := e.Reset(ctx, env.ResetOptions{})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Welcome to the %d-puzzle! Slide the blank until the tiles are in order.\n", len(obs)*len(obs)-1)

	p := newPrompter(in, out)
	total := 0.0
	for {
		if err := printBoard(e, out); err != nil {
			return err
		}
		fmt.Fprintf(out, "Steps: %v, Total Reward: %g\n", info["steps"], total)
		fmt.Fprintf(out, "Manhattan distance: %v\n", info["manhattan_distance"])

		key, err := p.ask("Enter action (w: up, d: right, s: down, a: left, q: quit): ")
		if errors.Is(err, io.EOF) {
			key = "q"
		} else if err != nil {
			return err
		}
		key = strings.ToLower(key)
		if key == "q" {
			fmt.Fprintln(out, "Quitting the game.")
			return nil
		}
		dir, ok := slidingKeys[key]
		if !ok {
			fmt.Fprintln(out, "Invalid input. Please try again.")
			continue
		}

		res, err := e.Step(ctx, []int{int(dir)})
		if err != nil {
			return err
		}
		total += res.Reward
		info = res.Info

		if res.Terminated || res.Truncated {
			if err := printBoard(e, out); err != nil {
				return err
			}
			if res.Terminated {
				fmt.Fprintf(out, "Solved in %v steps! Total Reward: %g\n", res.Info["steps"], total)
			} else {
				fmt.Fprintf(out, "Out of steps after %v moves. Game over!\n", res.Info["steps"])
			}
			return nil
		}
	}
}

func playRushHour(ctx context.Context, e env.Environment, in io.Reader, out io.Writer) error {
	obs, info, err := e.Reset(ctx, env.ResetOptions{})
	if err != nil {
		return err
	}
	if optimal := info["num_steps_to_finish"]; optimal != nil {
		fmt.Fprintf(out, "This board can be solved in %v moves.\n", optimal)
	}

	p := newPrompter(in, out)
	for {
		if err := printBoard(e, out); err != nil {
			return err
		}
		printLegend(out, env.PieceSymbols(obs))

		piece, err := p.askInt("Enter piece to move: ")
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}
		direction, err := p.askInt("Enter direction to move: ")
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		res, err := e.Step(ctx, []int{piece, direction})
		if errors.Is(err, core.ErrInvalidAction) {
			fmt.Fprintf(out, "Invalid action: %v\n", err)
			continue
		} else if err != nil {
			return err
		}
		obs = res.Observation

		fmt.Fprintf(out, "action=[%d %d] reward=%g moved=%v\n", piece, direction, res.Reward, res.Info["moved"])
		if res.Terminated {
			if err := printBoard(e, out); err != nil {
				return err
			}
			fmt.Fprintf(out, "Game won in %v steps!\n", res.Info["steps"])
			return nil
		}
	}
}

func printBoard(e env.Environment, out io.Writer) error {
	frame, err := e.Render(env.RenderText)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, frame.Text)
	return nil
}

func printLegend(out io.Writer, symbols []string) {
	parts := make([]string, len(symbols))
	for i, sym := range symbols {
		parts[i] = fmt.Sprintf("%d=%s", i, sym)
	}
	fmt.Fprintf(out, "pieces: %s\n", strings.Join(parts, " "))
}
