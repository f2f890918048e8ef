package render

import (
	"image"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/codec"
)

// DefaultCellSize is the side of one Rush Hour cell in pixels
const DefaultCellSize = 50

// VehicleImage paints the grid as colored cells with a black outline and
// labels each vehicle cell with the vehicle's action index.
func VehicleImage(grid [][]byte, pieces []codec.Piece, cellSize int) *image.RGBA {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	rows := len(grid)
	cols := 0
	if rows > 0 {
		cols = len(grid[0])
	}
	img := image.NewRGBA(image.Rect(0, 0, cols*cellSize, rows*cellSize))

	index := make(map[byte]int, len(pieces))
	for i, p := range pieces {
		index[p.ID] = i
	}

	face := basicfont.Face7x13
	for r, row := range grid {
		for c, symbol := range row {
			cell := image.Rect(c*cellSize, r*cellSize, (c+1)*cellSize, (r+1)*cellSize)
			draw.Draw(img, cell, image.NewUniform(PieceColor(symbol)), image.Point{}, draw.Src)
			outline(img, cell)

			i, ok := index[symbol]
			if !ok {
				continue
			}
			label := strconv.Itoa(i)
			drawer := &font.Drawer{
				Dst:  img,
				Src:  image.NewUniform(Black),
				Face: face,
			}
			width := drawer.MeasureString(label).Ceil()
			cx := cell.Min.X + (cellSize-width)/2
			cy := cell.Min.Y + (cellSize+face.Ascent-face.Descent)/2
			drawer.Dot = fixed.P(cx, cy)
			drawer.DrawString(label)
		}
	}
	return img
}

// outline draws a 1px black border on the inside of rect
func outline(img *image.RGBA, rect image.Rectangle) {
	for x := rect.Min.X; x < rect.Max.X; x++ {
		img.SetRGBA(x, rect.Min.Y, Black)
		img.SetRGBA(x, rect.Max.Y-1, Black)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		img.SetRGBA(rect.Min.X, y, Black)
		img.SetRGBA(rect.Max.X-1, y, Black)
	}
}
