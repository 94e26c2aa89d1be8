// Package wavelength loads and validates the wavelength grids used for
// spectral resampling.
package wavelength

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ReadGrid loads a grid from a CSV file with one value in the first field of
// each row and no header.
func ReadGrid(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	grid, err := ParseGrid(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return grid, nil
}

// ParseGrid reads grid values from CSV text. Blank lines are skipped.
func ParseGrid(r io.Reader) ([]float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var grid []float64
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		field := strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff"))
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		grid = append(grid, v)
	}

	if len(grid) == 0 {
		return nil, fmt.Errorf("no values found")
	}
	return grid, nil
}

// CheckIncreasing verifies that grid holds at least min finite values in
// strictly increasing order.
func CheckIncreasing(grid []float64, min int) error {
	if len(grid) < min {
		return fmt.Errorf("grid has %d points, need at least %d", len(grid), min)
	}
	for i, v := range grid {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("grid value %d is not finite: %v", i, v)
		}
		if i > 0 && v <= grid[i-1] {
			return fmt.Errorf("grid is not strictly increasing at index %d (%v after %v)", i, v, grid[i-1])
		}
	}
	return nil
}

// OutOfRange returns the index of the first target value outside the span of
// source, or -1 when every target lies within it.
func OutOfRange(source, target []float64) int {
	lo, hi := floats.Min(source), floats.Max(source)
	for i, v := range target {
		if v < lo || v > hi {
			return i
		}
	}
	return -1
}
