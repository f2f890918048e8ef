package ui

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/ui/input"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/ui/play"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/ui/renderer"
)

// Height of the status bar below the board
const statusBarHeight = 40

// PuzzleGame is an ebiten.Game that lets a human play one environment
type PuzzleGame struct {
	controller    *play.Controller
	boardRenderer *renderer.BoardRenderer
	inputHandler  *input.Handler
	defaultFont   font.Face
	logger        zerolog.Logger

	boardWidth  int
	boardHeight int
	dirty       bool
}

// NewPuzzleGame renders the first frame to size the window
func NewPuzzleGame(controller *play.Controller, logger zerolog.Logger) (*PuzzleGame, error) {
	g := &PuzzleGame{
		controller:    controller,
		boardRenderer: renderer.NewBoardRenderer(),
		defaultFont:   basicfont.Face7x13,
		logger:        logger.With().Str("component", "ui").Logger(),
	}

	frame, err := controller.Frame(env.RenderRGB)
	if err != nil {
		return nil, fmt.Errorf("failed to render first frame: %w", err)
	}
	bounds := frame.Image.Bounds()
	g.boardWidth, g.boardHeight = bounds.Dx(), bounds.Dy()

	cellSize := g.boardWidth / len(controller.Observation()[0])
	g.inputHandler = input.NewHandler(cellSize)
	g.boardRenderer.SetFrame(frame.Image, cellSize)
	return g, nil
}

// WindowSize is the screen size the game lays out to
func (g *PuzzleGame) WindowSize() (int, int) {
	return g.boardWidth, g.boardHeight + statusBarHeight
}

// Update applies this frame's input.
func (g *PuzzleGame) Update() error {
	for _, cmd := range g.inputHandler.Poll() {
		if err := g.controller.Apply(cmd); err != nil {
			g.logger.Debug().Err(err).Int("command", int(cmd.Kind)).Msg("Command rejected")
		}
		g.dirty = true
	}
	if g.dirty {
		frame, err := g.controller.Frame(env.RenderRGB)
		if err != nil {
			return err
		}
		cellSize := g.boardWidth / len(g.controller.Observation()[0])
		g.boardRenderer.SetFrame(frame.Image, cellSize)
		g.inputHandler.SetCellSize(cellSize)
		g.dirty = false
	}
	return nil
}

// Draw renders the game screen.
func (g *PuzzleGame) Draw(screen *ebiten.Image) {
	screen.Fill(renderer.BackgroundColor)

	g.boardRenderer.Draw(screen, 0, 0)
	g.boardRenderer.DrawSelection(screen, g.controller.SelectedCells(), 0, 0)

	y := g.boardHeight + 16
	text.Draw(screen, g.controller.Status(), g.defaultFont, 5, y, color.White)

	help := "Arrows/WASD: move  R: reset  G: goal"
	if g.controller.IsRushHour() {
		help = "0-9/Tab/click: select  Arrows: move  R: reset"
	}
	text.Draw(screen, help, g.defaultFont, 5, y+16, color.Gray{200})

	if ebiten.IsKeyPressed(ebiten.KeyF1) {
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("TPS: %0.1f", ebiten.ActualTPS()), 5, 5)
	}
}

// Layout defines the Ebitengine screen size.
func (g *PuzzleGame) Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int) {
	return g.WindowSize()
}
