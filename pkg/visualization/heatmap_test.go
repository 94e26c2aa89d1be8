package visualization

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"hsipatch/internal/models"
)

// TestHotStops verifies the anchor colours of the colour map
func TestHotStops(t *testing.T) {
	tests := []struct {
		t       float64
		r, g, b uint8
	}{
		{-1, 0, 0, 0},
		{0, 0, 0, 0},
		{0.365079, 255, 0, 0},
		{0.746032, 255, 255, 0},
		{1, 255, 255, 255},
		{2, 255, 255, 255},
	}

	for _, tc := range tests {
		r, g, b := Hot(tc.t).Clamped().RGB255()
		if r != tc.r || g != tc.g || b != tc.b {
			t.Errorf("Hot(%v): expected (%d,%d,%d), got (%d,%d,%d)", tc.t, tc.r, tc.g, tc.b, r, g, b)
		}
	}
}

func TestHotMonotonic(t *testing.T) {
	prev := -1.0
	for i := 0; i <= 100; i++ {
		c := Hot(float64(i) / 100)
		sum := c.R + c.G + c.B
		if sum < prev-1e-12 {
			t.Fatalf("Brightness decreased at step %d", i)
		}
		prev = sum
	}
}

func TestRender(t *testing.T) {
	width, height := 6, 4
	cube := models.NewCube(2, height, width)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			cube.Set(1, r, c, float64(r*width+c))
		}
	}

	h := &Heatmap{Scale: 2}
	img, err := h.Render(cube, 1)
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != width*2 || bounds.Dy() != height*2 {
		t.Errorf("Expected %dx%d, got %dx%d", width*2, height*2, bounds.Dx(), bounds.Dy())
	}

	// Minimum renders black, maximum white
	if px := img.RGBAAt(0, 0); px.R != 0 || px.G != 0 || px.B != 0 {
		t.Errorf("Expected black at minimum, got %v", px)
	}
	if px := img.RGBAAt(width*2-1, height*2-1); px.R != 255 || px.G != 255 || px.B != 255 {
		t.Errorf("Expected white at maximum, got %v", px)
	}

	// Constant band 0 renders black
	img, err = h.Render(cube, 0)
	if err != nil {
		t.Fatalf("Failed to render constant band: %v", err)
	}
	if px := img.RGBAAt(3, 3); px.R != 0 {
		t.Errorf("Expected black for constant band, got %v", px)
	}

	if _, err := h.Render(cube, 2); err == nil {
		t.Error("Expected error for out of range band")
	}
}

func TestSaveWithColorBar(t *testing.T) {
	cube := models.NewCube(1, 5, 5)
	for i := range cube.Data {
		cube.Data[i] = float64(i)
	}

	filename := filepath.Join(t.TempDir(), "plots", "band0.png")
	h := NewHeatmap(3)
	if err := h.Save(cube, 0, filename); err != nil {
		t.Fatalf("Failed to save heatmap: %v", err)
	}

	file, err := os.Open(filename)
	if err != nil {
		t.Fatalf("Failed to open heatmap: %v", err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("Failed to decode heatmap: %v", err)
	}
	// Image plus gap plus colour bar
	if got, want := img.Bounds().Dx(), 5*3+2*3+4*3; got != want {
		t.Errorf("Expected width %d, got %d", want, got)
	}
}
