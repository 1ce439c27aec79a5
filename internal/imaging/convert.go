package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/anthonynsimon/bild/effect"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/image-pde/internal/grid"
)

// Mode selects how image pixels map to grid components.
type Mode int

const (
	// Gray is one component holding luminance in [0, 255].
	Gray Mode = iota
	// RGB is three components holding red, green and blue in [0, 255].
	RGB
	// Lab is three components holding CIE L*a*b* (D65) with L in [0, 100].
	Lab
)

var modeNames = map[Mode]string{
	Gray: "gray",
	RGB:  "rgb",
	Lab:  "lab",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Components returns the number of grid components of the mode.
func (m Mode) Components() int {
	if m == Gray {
		return 1
	}
	return 3
}

// ParseMode parses "gray", "rgb" or "lab".
func ParseMode(s string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == key {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown color mode %q (want gray, rgb or lab)", s)
}

// labScale maps colorful's Lab range (L in [0, 1]) to CIE units.
const labScale = 100

// ToGrid converts img into a 2-D grid whose region matches the image bounds:
// axis 0 is x and axis 1 is y.
func ToGrid(img image.Image, mode Mode) (*grid.Grid, error) {
	b := img.Bounds()
	region := grid.NewRegion([]int{b.Min.X, b.Min.Y}, []int{b.Dx(), b.Dy()})
	g, err := grid.New(region, mode.Components())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate grid for %dx%d image: %w", b.Dx(), b.Dy(), err)
	}

	data := g.Data()
	switch mode {
	case Gray:
		gray := effect.Grayscale(img)
		i := 0
		for y := 0; y < b.Dy(); y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
			for _, v := range row {
				data[i] = float64(v)
				i++
			}
		}
	case RGB, Lab:
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := toColorful(img.At(x, y))
				if mode == RGB {
					data[i], data[i+1], data[i+2] = c.R*255, c.G*255, c.B*255
				} else {
					l, a, bb := c.Lab()
					data[i], data[i+1], data[i+2] = l*labScale, a*labScale, bb*labScale
				}
				i += 3
			}
		}
	default:
		return nil, fmt.Errorf("unknown color mode %v", mode)
	}
	return g, nil
}

// toColorful converts any color to colorful's normalized RGB. Fully
// transparent pixels become black.
func toColorful(c color.Color) colorful.Color {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return colorful.Color{}
	}
	return cf
}

// FromGrid converts a 2-D grid produced by ToGrid, or evolved from one, back
// to an image. Values outside the displayable range are clamped.
func FromGrid(g *grid.Grid, mode Mode) (image.Image, error) {
	if g.Dim() != 2 {
		return nil, fmt.Errorf("cannot convert %d-D grid to an image", g.Dim())
	}
	if g.Components() != mode.Components() {
		return nil, fmt.Errorf("%v mode needs %d components, grid has %d", mode, mode.Components(), g.Components())
	}

	r := g.Region()
	rect := image.Rect(r.Index[0], r.Index[1], r.Index[0]+r.Size[0], r.Index[1]+r.Size[1])
	data := g.Data()

	switch mode {
	case Gray:
		img := image.NewGray(rect)
		for y := 0; y < r.Size[1]; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+r.Size[0]]
			for x := range row {
				row[x] = toByte(data[y*r.Size[0]+x])
			}
		}
		return img, nil
	case RGB, Lab:
		img := image.NewNRGBA(rect)
		for y := 0; y < r.Size[1]; y++ {
			for x := 0; x < r.Size[0]; x++ {
				px := data[3*(y*r.Size[0]+x):]
				var c color.NRGBA
				if mode == RGB {
					c = color.NRGBA{toByte(px[0]), toByte(px[1]), toByte(px[2]), 255}
				} else {
					cr, cg, cb := colorful.Lab(px[0]/labScale, px[1]/labScale, px[2]/labScale).Clamped().RGB255()
					c = color.NRGBA{cr, cg, cb, 255}
				}
				img.SetNRGBA(r.Index[0]+x, r.Index[1]+y, c)
			}
		}
		return img, nil
	}
	return nil, fmt.Errorf("unknown color mode %v", mode)
}

func toByte(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(math.Round(min(max(v, 0), 255)))
}
