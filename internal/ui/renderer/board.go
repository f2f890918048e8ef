package renderer

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
)

var (
	BackgroundColor = color.RGBA{50, 50, 50, 255}
	SelectionColor  = color.RGBA{255, 215, 0, 255}
)

const selectionStroke = 3

// BoardRenderer draws rendered puzzle frames onto the Ebiten screen
type BoardRenderer struct {
	frame    *ebiten.Image
	cellSize int
}

// NewBoardRenderer returns a renderer ready to use.
func NewBoardRenderer() *BoardRenderer {
	return &BoardRenderer{}
}

// SetFrame uploads a new frame. cellSize is the pixel size of one grid
// cell within it.
func (br *BoardRenderer) SetFrame(img *image.RGBA, cellSize int) {
	if br.frame != nil {
		br.frame.Deallocate()
	}
	br.frame = ebiten.NewImageFromImage(img)
	br.cellSize = cellSize
}

// Draw renders the current frame at (x, y)
func (br *BoardRenderer) Draw(screen *ebiten.Image, x, y int) {
	if br.frame == nil {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(br.frame, op)
}

// DrawSelection outlines the bounding box of cells
func (br *BoardRenderer) DrawSelection(screen *ebiten.Image, cells []core.Coordinate, x, y int) {
	if len(cells) == 0 || br.cellSize == 0 {
		return
	}
	minR, minC := cells[0].Row, cells[0].Col
	maxR, maxC := minR, minC
	for _, c := range cells[1:] {
		minR, maxR = min(minR, c.Row), max(maxR, c.Row)
		minC, maxC = min(minC, c.Col), max(maxC, c.Col)
	}

	size := float32(br.cellSize)
	vector.StrokeRect(screen,
		float32(x)+float32(minC)*size+1,
		float32(y)+float32(minR)*size+1,
		float32(maxC-minC+1)*size-2,
		float32(maxR-minR+1)*size-2,
		selectionStroke, SelectionColor, false)
}
