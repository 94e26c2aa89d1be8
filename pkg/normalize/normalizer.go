// Package normalize standardizes each spectral band of a cube to zero mean and
// unit variance over all pixels.
//
// Standard deviations use the population formula (divide by N), which is the
// convention of sklearn.preprocessing.scale. A band with zero variance cannot
// be standardized and is reported as a numeric error rather than producing NaN
// or silently passing through.
package normalize

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"hsipatch/internal/models"
	"hsipatch/pkg/pipeerr"
)

const stage = "normalize"

// BandNormalizer holds the per-band statistics of the last fit
type BandNormalizer struct {
	// Mean is the mean of each band
	Mean []float64

	// Scale is the population standard deviation of each band
	Scale []float64
}

// Flatten lays out a cube as a (rows*cols) x bands sample matrix. Sample
// r*cols+c is pixel (r, c), so each image row contributes a contiguous block.
func Flatten(cube *models.Cube) *mat.Dense {
	samples := cube.Rows * cube.Cols
	m := mat.NewDense(samples, cube.Bands, nil)
	for b := 0; b < cube.Bands; b++ {
		m.SetCol(b, cube.Band(b))
	}
	return m
}

// Unflatten is the inverse of Flatten
func Unflatten(m mat.Matrix, rows, cols int) *models.Cube {
	_, bands := m.Dims()
	cube := models.NewCube(bands, rows, cols)
	for b := 0; b < bands; b++ {
		mat.Col(cube.Band(b), b, m)
	}
	return cube
}

// FitTransform computes the mean and population standard deviation of every
// column of x and returns a new matrix with each column standardized.
func (n *BandNormalizer) FitTransform(x mat.Matrix) (*mat.Dense, error) {
	samples, bands := x.Dims()
	if samples == 0 || bands == 0 {
		return nil, pipeerr.New(stage, pipeerr.Shape, "empty sample matrix %dx%d", samples, bands)
	}

	n.Mean = make([]float64, bands)
	n.Scale = make([]float64, bands)

	out := mat.NewDense(samples, bands, nil)
	col := make([]float64, samples)
	for b := 0; b < bands; b++ {
		mat.Col(col, b, x)
		if floats.HasNaN(col) || math.IsInf(floats.Sum(col), 0) {
			return nil, pipeerr.New(stage, pipeerr.Numeric, "band %d contains non-finite values", b)
		}

		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			return nil, pipeerr.New(stage, pipeerr.Numeric,
				"band %d has zero variance (constant value %v) and cannot be standardized", b, mean)
		}
		n.Mean[b] = mean
		n.Scale[b] = std

		floats.AddConst(-mean, col)
		floats.Scale(1/std, col)
		out.SetCol(b, col)
	}

	return out, nil
}

// Normalize standardizes every band of cube and returns a new cube of the
// same shape. The input is not modified.
func (n *BandNormalizer) Normalize(cube *models.Cube) (*models.Cube, error) {
	scaled, err := n.FitTransform(Flatten(cube))
	if err != nil {
		return nil, err
	}
	return Unflatten(scaled, cube.Rows, cube.Cols), nil
}

// Normalize standardizes every band of cube with a fresh BandNormalizer
func Normalize(cube *models.Cube) (*models.Cube, error) {
	var n BandNormalizer
	return n.Normalize(cube)
}
