package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"

	"hsipatch/internal/models"
)

// hotStops are the anchors of the "hot" colour map: black, red, yellow, white
var hotStops = []struct {
	pos float64
	col colorful.Color
}{
	{0, colorful.Color{R: 0, G: 0, B: 0}},
	{0.365079, colorful.Color{R: 1, G: 0, B: 0}},
	{0.746032, colorful.Color{R: 1, G: 1, B: 0}},
	{1, colorful.Color{R: 1, G: 1, B: 1}},
}

// Hot maps t in [0, 1] onto the hot colour map. Values outside are clamped.
func Hot(t float64) colorful.Color {
	if t <= 0 {
		return hotStops[0].col
	}
	for i := 1; i < len(hotStops); i++ {
		lo, hi := hotStops[i-1], hotStops[i]
		if t <= hi.pos {
			return lo.col.BlendRgb(hi.col, (t-lo.pos)/(hi.pos-lo.pos))
		}
	}
	return hotStops[len(hotStops)-1].col
}

// Heatmap renders one band of a cube as a colour image
type Heatmap struct {
	// Scale is the number of output pixels per cube pixel along each axis
	Scale int

	// ColorBar appends a vertical legend strip on the right
	ColorBar bool
}

// NewHeatmap creates a heatmap renderer with a colour bar
func NewHeatmap(scale int) *Heatmap {
	if scale < 1 {
		scale = 1
	}
	return &Heatmap{Scale: scale, ColorBar: true}
}

// Render draws band of cube, scaling its values linearly from the band
// minimum (black) to the band maximum (white). A constant band renders black.
func (h *Heatmap) Render(cube *models.Cube, band int) (*image.RGBA, error) {
	if band < 0 || band >= cube.Bands {
		return nil, fmt.Errorf("band %d out of range [0, %d)", band, cube.Bands)
	}
	if cube.Rows == 0 || cube.Cols == 0 {
		return nil, fmt.Errorf("cannot render an empty %dx%d image", cube.Rows, cube.Cols)
	}

	scale := h.Scale
	if scale < 1 {
		scale = 1
	}
	values := cube.Band(band)
	lo, hi := floats.Min(values), floats.Max(values)
	span := hi - lo

	width, height := cube.Cols*scale, cube.Rows*scale
	barWidth, gap := 0, 0
	if h.ColorBar {
		gap = 2 * scale
		barWidth = 4 * scale
	}

	img := image.NewRGBA(image.Rect(0, 0, width+gap+barWidth, height))
	for r := 0; r < cube.Rows; r++ {
		for c := 0; c < cube.Cols; c++ {
			t := 0.0
			if span > 0 {
				t = (values[r*cube.Cols+c] - lo) / span
			}
			px := toRGBA(Hot(t))
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetRGBA(c*scale+dx, r*scale+dy, px)
				}
			}
		}
	}

	if h.ColorBar {
		for y := 0; y < height; y++ {
			// Top of the bar is the maximum
			t := 1 - float64(y)/float64(max(height-1, 1))
			px := toRGBA(Hot(t))
			for x := width + gap; x < width+gap+barWidth; x++ {
				img.SetRGBA(x, y, px)
			}
		}
	}

	return img, nil
}

// Save renders band of cube and writes it as a PNG file
func (h *Heatmap) Save(cube *models.Cube, band int, filename string) error {
	img, err := h.Render(cube, band)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create heatmap directory: %w", err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode heatmap: %w", err)
	}
	return file.Close()
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
