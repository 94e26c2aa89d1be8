// Package labels turns the ground-truth grid into the flat label sequence
// that lines up with the patch collection.
package labels

import (
	"hsipatch/internal/models"
	"hsipatch/pkg/pipeerr"
)

// Flatten returns the labels of grid in row-major order
func Flatten(grid *models.LabelGrid) []int64 {
	out := make([]int64, grid.Rows*grid.Cols)
	copy(out, grid.Data)
	return out
}

// FlattenExtent returns the labels of the leading rows x cols window of grid
// in row-major order.
func FlattenExtent(grid *models.LabelGrid, rows, cols int) ([]int64, error) {
	if rows < 0 || cols < 0 || rows > grid.Rows || cols > grid.Cols {
		return nil, pipeerr.New("labels", pipeerr.Input,
			"label extent %dx%d exceeds the %dx%d grid", rows, cols, grid.Rows, grid.Cols)
	}

	out := make([]int64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		out = append(out, grid.Data[r*grid.Cols:r*grid.Cols+cols]...)
	}
	return out, nil
}
