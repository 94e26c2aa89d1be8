package spectral

import (
	"context"
	"errors"
	"math"
	"testing"

	"hsipatch/internal/models"
	"hsipatch/pkg/pipeerr"
)

// createUniformCube fills every pixel with the same spectrum
func createUniformCube(rows, cols int, spectrum []float64) *models.Cube {
	cube := models.NewCube(len(spectrum), rows, cols)
	for b, v := range spectrum {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				cube.Set(b, r, c, v)
			}
		}
	}
	return cube
}

// TestUniformCubeScenario resamples a 3x3 cube of [1,2,3] spectra onto a
// half-step grid
func TestUniformCubeScenario(t *testing.T) {
	cube := createUniformCube(3, 3, []float64{1, 2, 3})
	r, err := NewResampler([]float64{0, 1, 2}, []float64{0, 0.5, 1, 1.5, 2}, 2)
	if err != nil {
		t.Fatalf("Failed to create resampler: %v", err)
	}

	out, err := r.Resample(context.Background(), cube)
	if err != nil {
		t.Fatalf("Failed to resample: %v", err)
	}

	if out.Bands != 5 || out.Rows != 3 || out.Cols != 3 {
		t.Fatalf("Expected shape [5 3 3], got %v", out.Shape())
	}

	expected := []float64{1, 1.5, 2, 2.5, 3}
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			for b, want := range expected {
				if got := out.At(b, row, col); math.Abs(got-want) > 1e-12 {
					t.Errorf("Pixel (%d, %d) band %d: expected %v, got %v", row, col, b, want, got)
				}
			}
		}
	}
}

// TestIdentityAtKnots verifies interpolation is exact where grids coincide
func TestIdentityAtKnots(t *testing.T) {
	original := []float64{400, 410, 425, 431, 450, 470}
	cube := models.NewCube(len(original), 4, 5)
	for i := range cube.Data {
		cube.Data[i] = math.Sin(float64(i)) * 1000
	}
	input := cube.Clone()

	r, err := NewResampler(original, original, 0)
	if err != nil {
		t.Fatalf("Failed to create resampler: %v", err)
	}
	out, err := r.Resample(context.Background(), cube)
	if err != nil {
		t.Fatalf("Failed to resample: %v", err)
	}

	for i := range cube.Data {
		if out.Data[i] != cube.Data[i] {
			t.Fatalf("Index %d: expected exact %v, got %v", i, cube.Data[i], out.Data[i])
		}
		if cube.Data[i] != input.Data[i] {
			t.Fatalf("Input cube was modified at %d", i)
		}
	}
}

func TestPerPixelIndependence(t *testing.T) {
	original := []float64{0, 10}
	cube := models.NewCube(2, 2, 2)
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			base := float64(10*r + c)
			cube.Set(0, r, c, base)
			cube.Set(1, r, c, base+10)
		}
	}

	r, err := NewResampler(original, []float64{2.5}, 4)
	if err != nil {
		t.Fatalf("Failed to create resampler: %v", err)
	}
	out, err := r.Resample(context.Background(), cube)
	if err != nil {
		t.Fatalf("Failed to resample: %v", err)
	}
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			want := float64(10*row+col) + 2.5
			if got := out.At(0, row, col); math.Abs(got-want) > 1e-12 {
				t.Errorf("Pixel (%d, %d): expected %v, got %v", row, col, want, got)
			}
		}
	}
}

func TestResamplerErrors(t *testing.T) {
	tests := []struct {
		name     string
		original []float64
		target   []float64
		want     error
	}{
		{"TargetBelowRange", []float64{0, 1, 2}, []float64{-0.5, 1}, pipeerr.ErrDomain},
		{"TargetAboveRange", []float64{0, 1, 2}, []float64{1, 2.5}, pipeerr.ErrDomain},
		{"DuplicateOriginal", []float64{0, 1, 1, 2}, []float64{0.5}, pipeerr.ErrInput},
		{"DecreasingTarget", []float64{0, 1, 2}, []float64{1, 0.5}, pipeerr.ErrInput},
		{"SinglePointOriginal", []float64{1}, []float64{1}, pipeerr.ErrInput},
		{"EmptyTarget", []float64{0, 1}, nil, pipeerr.ErrInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewResampler(tc.original, tc.target, 1)
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestResampleShapeMismatch(t *testing.T) {
	r, err := NewResampler([]float64{0, 1, 2}, []float64{1}, 1)
	if err != nil {
		t.Fatalf("Failed to create resampler: %v", err)
	}
	_, err = r.Resample(context.Background(), models.NewCube(4, 2, 2))
	if !errors.Is(err, pipeerr.ErrShape) {
		t.Errorf("Expected shape error, got %v", err)
	}
	if pipeerr.StageOf(err) != "resample" {
		t.Errorf("Expected stage resample, got %q", pipeerr.StageOf(err))
	}
}

func TestResampleSpectrum(t *testing.T) {
	out, err := ResampleSpectrum([]float64{0, 2, 4}, []float64{0, 4, 0}, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("Failed to resample spectrum: %v", err)
	}
	expected := []float64{2, 4, 2}
	for i := range expected {
		if math.Abs(out[i]-expected[i]) > 1e-12 {
			t.Errorf("Index %d: expected %v, got %v", i, expected[i], out[i])
		}
	}
}
