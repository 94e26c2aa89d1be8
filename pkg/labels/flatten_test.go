package labels

import (
	"errors"
	"testing"

	"hsipatch/internal/models"
	"hsipatch/pkg/pipeerr"
)

func createTestGrid(rows, cols int) *models.LabelGrid {
	grid := &models.LabelGrid{Data: make([]int64, rows*cols), Rows: rows, Cols: cols}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			grid.Data[r*cols+c] = int64((r*7 + c*3) % 17)
		}
	}
	return grid
}

func TestFlatten(t *testing.T) {
	grid := createTestGrid(5, 4)
	out := Flatten(grid)

	if len(out) != 20 {
		t.Fatalf("Expected 20 labels, got %d", len(out))
	}
	for r := 0; r < 5; r++ {
		for c := 0; c < 4; c++ {
			if out[r*4+c] != grid.At(r, c) {
				t.Errorf("Index %d: expected %d, got %d", r*4+c, grid.At(r, c), out[r*4+c])
			}
		}
	}

	out[0] = 99
	if grid.Data[0] == 99 {
		t.Error("Flatten must not alias the grid")
	}
}

func TestFlattenExtent(t *testing.T) {
	grid := createTestGrid(6, 6)

	out, err := FlattenExtent(grid, 3, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out) != 6 {
		t.Fatalf("Expected 6 labels, got %d", len(out))
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 2; c++ {
			if out[r*2+c] != grid.At(r, c) {
				t.Errorf("(%d, %d): expected %d, got %d", r, c, grid.At(r, c), out[r*2+c])
			}
		}
	}

	full, err := FlattenExtent(grid, 6, 6)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for i, v := range Flatten(grid) {
		if full[i] != v {
			t.Fatalf("Full extent differs from Flatten at %d", i)
		}
	}

	if _, err := FlattenExtent(grid, 7, 6); !errors.Is(err, pipeerr.ErrInput) {
		t.Errorf("Expected input error, got %v", err)
	}
}
