package matfile

import (
	"fmt"
	"math"

	"hsipatch/internal/models"
)

// Cube reorders a (rows, cols, bands) MATLAB array into a band-first cube.
// A 2-D array is read as a single-band cube.
func (v *Variable) Cube() (*models.Cube, error) {
	var rows, cols, bands int
	switch len(v.Dims) {
	case 2:
		rows, cols, bands = v.Dims[0], v.Dims[1], 1
	case 3:
		rows, cols, bands = v.Dims[0], v.Dims[1], v.Dims[2]
	default:
		return nil, fmt.Errorf("variable %q has %d dimensions, want (rows, cols, bands)", v.Name, len(v.Dims))
	}
	if rows == 0 || cols == 0 || bands == 0 {
		return nil, fmt.Errorf("variable %q is empty: %v", v.Name, v.Dims)
	}

	cube := models.NewCube(bands, rows, cols)
	plane := rows * cols
	for b := 0; b < bands; b++ {
		src := v.Data[b*plane : (b+1)*plane]
		dst := cube.Band(b)
		// Column-major source, row-major destination
		for c := 0; c < cols; c++ {
			for r := 0; r < rows; r++ {
				dst[r*cols+c] = src[c*rows+r]
			}
		}
	}
	return cube, nil
}

// LabelGrid reads a (rows, cols) MATLAB array of class labels. Values stored
// in a floating class must still be whole numbers.
func (v *Variable) LabelGrid() (*models.LabelGrid, error) {
	if len(v.Dims) != 2 {
		return nil, fmt.Errorf("variable %q has %d dimensions, want (rows, cols)", v.Name, len(v.Dims))
	}
	rows, cols := v.Dims[0], v.Dims[1]

	grid := &models.LabelGrid{Data: make([]int64, rows*cols), Rows: rows, Cols: cols}
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			x := v.Data[c*rows+r]
			if x != math.Trunc(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("variable %q holds non-integer label %v at (%d, %d)", v.Name, x, r, c)
			}
			grid.Data[r*cols+c] = int64(x)
		}
	}
	return grid, nil
}

// FromCube builds a (rows, cols, bands) variable from a band-first cube.
func FromCube(name string, class Class, cube *models.Cube) *Variable {
	v := &Variable{
		Name:  name,
		Class: class,
		Dims:  []int{cube.Rows, cube.Cols, cube.Bands},
		Data:  make([]float64, len(cube.Data)),
	}
	plane := cube.Rows * cube.Cols
	for b := 0; b < cube.Bands; b++ {
		src := cube.Band(b)
		dst := v.Data[b*plane : (b+1)*plane]
		for r := 0; r < cube.Rows; r++ {
			for c := 0; c < cube.Cols; c++ {
				dst[c*cube.Rows+r] = src[r*cube.Cols+c]
			}
		}
	}
	return v
}

// FromLabelGrid builds a (rows, cols) variable from a label grid.
func FromLabelGrid(name string, class Class, grid *models.LabelGrid) *Variable {
	v := &Variable{
		Name:  name,
		Class: class,
		Dims:  []int{grid.Rows, grid.Cols},
		Data:  make([]float64, len(grid.Data)),
	}
	for r := 0; r < grid.Rows; r++ {
		for c := 0; c < grid.Cols; c++ {
			v.Data[c*grid.Rows+r] = float64(grid.At(r, c))
		}
	}
	return v
}
