package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultImageSize is the side of the sliding puzzle frame in pixels
const DefaultImageSize = 400

var ErrImageSize = errors.New("image size is not divisible by the grid side")

// TileSet holds one image tile per label, cut from a source picture in
// its solved arrangement.
type TileSet struct {
	side     int
	tileSize int
	tiles    []*image.RGBA
	original *image.RGBA
}

// LoadImage decodes a PNG or JPEG file
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// NewTileSet scales src to imageSize x imageSize, applies filter when it
// is not nil and cuts the result into side x side tiles. Tile k is the
// picture at solved cell k.
func NewTileSet(src image.Image, side, imageSize int, filter *Filter) (*TileSet, error) {
	if side <= 0 || imageSize <= 0 || imageSize%side != 0 {
		return nil, fmt.Errorf("%w: size %d, side %d", ErrImageSize, imageSize, side)
	}

	scaled := image.NewRGBA(image.Rect(0, 0, imageSize, imageSize))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)

	picture := scaled
	if filter != nil {
		picture = filter.Apply(scaled)
	}

	tileSize := imageSize / side
	ts := &TileSet{side: side, tileSize: tileSize, tiles: make([]*image.RGBA, side*side), original: scaled}
	for k := range ts.tiles {
		r, c := k/side, k%side
		tile := image.NewRGBA(image.Rect(0, 0, tileSize, tileSize))
		stddraw.Draw(tile, tile.Bounds(), picture, image.Pt(c*tileSize, r*tileSize), stddraw.Src)
		ts.tiles[k] = tile
	}
	return ts, nil
}

// TileSize returns the side of one tile in pixels
func (ts *TileSet) TileSize() int {
	return ts.tileSize
}

// Compose assembles the frame for grid. The blank is painted black and
// tiles are separated by 1px black lines.
func (ts *TileSet) Compose(grid [][]int) *image.RGBA {
	size := ts.side * ts.tileSize
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for r, row := range grid {
		for c, t := range row {
			dst := image.Rect(c*ts.tileSize, r*ts.tileSize, (c+1)*ts.tileSize, (r+1)*ts.tileSize)
			if t <= 0 || t >= len(ts.tiles) {
				stddraw.Draw(img, dst, image.NewUniform(Black), image.Point{}, stddraw.Src)
			} else {
				stddraw.Draw(img, dst, ts.tiles[t], image.Point{}, stddraw.Src)
			}
			outline(img, dst)
		}
	}
	return img
}

// Original returns a copy of the scaled picture before any filter
func (ts *TileSet) Original() *image.RGBA {
	out := image.NewRGBA(ts.original.Bounds())
	copy(out.Pix, ts.original.Pix)
	return out
}

// Goal composes the solved arrangement
func (ts *TileSet) Goal() *image.RGBA {
	grid := make([][]int, ts.side)
	for r := range grid {
		grid[r] = make([]int, ts.side)
		for c := range grid[r] {
			grid[r][c] = r*ts.side + c
		}
	}
	return ts.Compose(grid)
}

// NumberedSource renders a gradient picture with each tile's label
// printed in its solved cell. It stands in when no image is configured.
func NumberedSource(side, imageSize int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, imageSize, imageSize))
	for y := 0; y < imageSize; y++ {
		for x := 0; x < imageSize; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(40 + 180*x/imageSize),
				G: uint8(40 + 180*y/imageSize),
				B: 160,
				A: 255,
			})
		}
	}
	if side <= 0 {
		return img
	}

	tileSize := imageSize / side
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(White), Face: face}
	for k := 1; k < side*side; k++ {
		label := strconv.Itoa(k)
		r, c := k/side, k%side
		width := drawer.MeasureString(label).Ceil()
		drawer.Dot = fixed.P(c*tileSize+(tileSize-width)/2, r*tileSize+(tileSize+face.Ascent-face.Descent)/2)
		drawer.DrawString(label)
	}
	return img
}
