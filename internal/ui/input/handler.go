package input

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/ui/play"
)

func move(d core.Direction) play.Command {
	return play.Command{Kind: play.CommandMove, Direction: d}
}

func selectPiece(i int) play.Command {
	return play.Command{Kind: play.CommandSelect, Piece: i}
}

// keyBindings is polled in order: moves, piece selection, then the rest
var keyBindings = []play.Binding[ebiten.Key]{
	{Key: ebiten.KeyArrowUp, Command: move(core.Up)},
	{Key: ebiten.KeyArrowRight, Command: move(core.Right)},
	{Key: ebiten.KeyArrowDown, Command: move(core.Down)},
	{Key: ebiten.KeyArrowLeft, Command: move(core.Left)},
	{Key: ebiten.KeyW, Command: move(core.Up)},
	{Key: ebiten.KeyD, Command: move(core.Right)},
	{Key: ebiten.KeyS, Command: move(core.Down)},
	{Key: ebiten.KeyA, Command: move(core.Left)},
	{Key: ebiten.KeyDigit0, Command: selectPiece(0)},
	{Key: ebiten.KeyDigit1, Command: selectPiece(1)},
	{Key: ebiten.KeyDigit2, Command: selectPiece(2)},
	{Key: ebiten.KeyDigit3, Command: selectPiece(3)},
	{Key: ebiten.KeyDigit4, Command: selectPiece(4)},
	{Key: ebiten.KeyDigit5, Command: selectPiece(5)},
	{Key: ebiten.KeyDigit6, Command: selectPiece(6)},
	{Key: ebiten.KeyDigit7, Command: selectPiece(7)},
	{Key: ebiten.KeyDigit8, Command: selectPiece(8)},
	{Key: ebiten.KeyDigit9, Command: selectPiece(9)},
	{Key: ebiten.KeyTab, Command: play.Command{Kind: play.CommandNextPiece}},
	{Key: ebiten.KeyR, Command: play.Command{Kind: play.CommandReset}},
	{Key: ebiten.KeyG, Command: play.Command{Kind: play.CommandToggleGoal}},
}

// Handler maps keys and clicks on a board drawn at the screen origin
type Handler struct {
	cellSize int
}

func NewHandler(cellSize int) *Handler {
	return &Handler{cellSize: cellSize}
}

// Poll returns the commands triggered since the previous frame
func (h *Handler) Poll() []play.Command {
	cmds := play.Triggered(keyBindings, inpututil.IsKeyJustPressed)

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		if cell, ok := h.screenToCell(x, y); ok {
			cmds = append(cmds, play.Command{Kind: play.CommandClick, Cell: cell})
		}
	}
	return cmds
}

func (h *Handler) screenToCell(x, y int) (core.Coordinate, bool) {
	if h.cellSize <= 0 || x < 0 || y < 0 {
		return core.Coordinate{}, false
	}
	return core.NewCoordinate(y/h.cellSize, x/h.cellSize), true
}

func (h *Handler) SetCellSize(size int) {
	h.cellSize = size
}
