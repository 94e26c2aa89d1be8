package wavelength

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseGrid(t *testing.T) {
	input := "400.02\n409.54,ignored\n\n 419.1\n"
	grid, err := ParseGrid(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Failed to parse grid: %v", err)
	}

	expected := []float64{400.02, 409.54, 419.1}
	if len(grid) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(grid))
	}
	for i := range expected {
		if grid[i] != expected[i] {
			t.Errorf("Index %d: expected %v, got %v", i, expected[i], grid[i])
		}
	}
}

func TestParseGridErrors(t *testing.T) {
	tests := map[string]string{
		"Empty":     "",
		"NotNumber": "400\nabc\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseGrid(strings.NewReader(input)); err == nil {
				t.Errorf("Expected error for input %q", input)
			}
		})
	}
}

func TestReadGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.csv")
	if err := os.WriteFile(path, []byte("1\n2\n3\n"), 0644); err != nil {
		t.Fatalf("Failed to write grid file: %v", err)
	}
	grid, err := ReadGrid(path)
	if err != nil {
		t.Fatalf("Failed to read grid: %v", err)
	}
	if len(grid) != 3 || grid[2] != 3 {
		t.Errorf("Unexpected grid %v", grid)
	}

	if _, err := ReadGrid(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestCheckIncreasing(t *testing.T) {
	if err := CheckIncreasing([]float64{0, 1, 2}, 2); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	bad := map[string][]float64{
		"TooShort":   {1},
		"Duplicate":  {0, 1, 1, 2},
		"Decreasing": {0, 2, 1},
	}
	for name, grid := range bad {
		t.Run(name, func(t *testing.T) {
			if err := CheckIncreasing(grid, 2); err == nil {
				t.Errorf("Expected error for grid %v", grid)
			}
		})
	}
}

func TestOutOfRange(t *testing.T) {
	source := []float64{0, 1, 2}
	if i := OutOfRange(source, []float64{0, 0.5, 2}); i != -1 {
		t.Errorf("Expected -1, got %d", i)
	}
	if i := OutOfRange(source, []float64{0, 2.01}); i != 1 {
		t.Errorf("Expected 1, got %d", i)
	}
	if i := OutOfRange(source, []float64{-0.1}); i != 0 {
		t.Errorf("Expected 0, got %d", i)
	}
}
