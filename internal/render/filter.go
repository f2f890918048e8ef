package render

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
)

// Filter is a square convolution applied to the scaled source picture
// before it is cut into tiles. Each output channel is
// sum(kernel*pixels)/scale + offset, clamped to 0..255.
type Filter struct {
	Name   string
	size   int
	kernel []int
	scale  int
	offset int
}

// filters use the classic image-library kernels under their usual names
var filters = map[string]Filter{
	"BLUR": {size: 5, scale: 16, kernel: []int{
		1, 1, 1, 1, 1,
		1, 0, 0, 0, 1,
		1, 0, 0, 0, 1,
		1, 0, 0, 0, 1,
		1, 1, 1, 1, 1,
	}},
	"CONTOUR": {size: 3, scale: 1, offset: 255, kernel: []int{
		-1, -1, -1,
		-1, 8, -1,
		-1, -1, -1,
	}},
	"DETAIL": {size: 3, scale: 6, kernel: []int{
		0, -1, 0,
		-1, 10, -1,
		0, -1, 0,
	}},
	"EDGE_ENHANCE": {size: 3, scale: 2, kernel: []int{
		-1, -1, -1,
		-1, 10, -1,
		-1, -1, -1,
	}},
	"EDGE_ENHANCE_MORE": {size: 3, scale: 1, kernel: []int{
		-1, -1, -1,
		-1, 9, -1,
		-1, -1, -1,
	}},
	"EMBOSS": {size: 3, scale: 1, offset: 128, kernel: []int{
		-1, 0, 0,
		0, 1, 0,
		0, 0, 0,
	}},
	"FIND_EDGES": {size: 3, scale: 1, kernel: []int{
		-1, -1, -1,
		-1, 8, -1,
		-1, -1, -1,
	}},
	"SHARPEN": {size: 3, scale: 16, kernel: []int{
		-2, -2, -2,
		-2, 32, -2,
		-2, -2, -2,
	}},
	"SMOOTH": {size: 3, scale: 13, kernel: []int{
		1, 1, 1,
		1, 5, 1,
		1, 1, 1,
	}},
	"SMOOTH_MORE": {size: 5, scale: 100, kernel: []int{
		1, 1, 1, 1, 1,
		1, 5, 5, 5, 1,
		1, 5, 44, 5, 1,
		1, 5, 5, 5, 1,
		1, 1, 1, 1, 1,
	}},
}

// FilterNames lists the accepted filter names
func FilterNames() []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseFilter looks a filter up by name, ignoring case. An empty name
// means no filter and returns nil.
func ParseFilter(name string) (*Filter, error) {
	if name == "" {
		return nil, nil
	}
	key := strings.ToUpper(name)
	f, ok := filters[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown filter effect %q, want one of %s",
			core.ErrInvalidConfig, name, strings.Join(FilterNames(), ", "))
	}
	f.Name = key
	return &f, nil
}

// Apply returns a filtered copy of src. Samples past the border repeat the
// edge pixel. Alpha is copied unchanged.
func (f *Filter) Apply(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	half := f.size / 2

	clamp := func(v, lo, hi int) int {
		return min(max(v, lo), hi)
	}
	channel := func(sum int) uint8 {
		return uint8(clamp(sum/f.scale+f.offset, 0, 255))
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var r, g, bl int
			for ky := 0; ky < f.size; ky++ {
				sy := clamp(y+ky-half, b.Min.Y, b.Max.Y-1)
				for kx := 0; kx < f.size; kx++ {
					w := f.kernel[ky*f.size+kx]
					if w == 0 {
						continue
					}
					sx := clamp(x+kx-half, b.Min.X, b.Max.X-1)
					p := src.RGBAAt(sx, sy)
					r += w * int(p.R)
					g += w * int(p.G)
					bl += w * int(p.B)
				}
			}
			dst.SetRGBA(x, y, color.RGBA{
				R: channel(r),
				G: channel(g),
				B: channel(bl),
				A: src.RGBAAt(x, y).A,
			})
		}
	}
	return dst
}
