// Package spectral re-samples the spectral axis of a hyperspectral cube from
// the sensor's wavelength grid onto a target grid.
package spectral

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/interp"

	"hsipatch/internal/models"
	"hsipatch/pkg/pipeerr"
	"hsipatch/pkg/wavelength"
)

const stage = "resample"

// Resampler evaluates a piecewise-linear interpolant of every pixel's spectrum
// at the points of a target wavelength grid.
type Resampler struct {
	// original is the wavelength of each input band
	original []float64

	// target is the wavelength of each output band
	target []float64

	// workers bounds the number of rows processed concurrently
	workers int
}

// NewResampler validates both grids and returns a Resampler.
//
// Parameters:
//   - original: wavelengths of the input bands, strictly increasing, at least 2 points
//   - target: wavelengths to resample onto, strictly increasing, within the original span
//   - workers: maximum concurrent rows; values below 1 mean runtime.NumCPU()
//
// Returns:
//   - an input error for malformed grids
//   - a domain error when a target point lies outside the original span
func NewResampler(original, target []float64, workers int) (*Resampler, error) {
	if err := wavelength.CheckIncreasing(original, 2); err != nil {
		return nil, pipeerr.New(stage, pipeerr.Input, "original wavelength grid: %v", err)
	}
	if err := wavelength.CheckIncreasing(target, 1); err != nil {
		return nil, pipeerr.New(stage, pipeerr.Input, "target wavelength grid: %v", err)
	}
	if i := wavelength.OutOfRange(original, target); i >= 0 {
		return nil, pipeerr.New(stage, pipeerr.Domain,
			"target wavelength %v (index %d) lies outside the original range [%v, %v]",
			target[i], i, original[0], original[len(original)-1])
	}

	if workers < 1 {
		workers = runtime.NumCPU()
	}

	r := &Resampler{
		original: make([]float64, len(original)),
		target:   make([]float64, len(target)),
		workers:  workers,
	}
	copy(r.original, original)
	copy(r.target, target)
	return r, nil
}

// Bands returns the number of output bands
func (r *Resampler) Bands() int {
	return len(r.target)
}

// Resample returns a new cube of shape (len(target), rows, cols). The input
// cube is not modified. Rows are processed in parallel; the result does not
// depend on scheduling.
func (r *Resampler) Resample(ctx context.Context, cube *models.Cube) (*models.Cube, error) {
	if cube.Bands != len(r.original) {
		return nil, pipeerr.New(stage, pipeerr.Shape,
			"cube has %d bands but the original wavelength grid has %d points", cube.Bands, len(r.original))
	}

	out := models.NewCube(len(r.target), cube.Rows, cube.Cols)
	plane := cube.Rows * cube.Cols

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for row := 0; row < cube.Rows; row++ {
		row := row
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var pl interp.PiecewiseLinear
			spectrum := make([]float64, cube.Bands)
			for col := 0; col < cube.Cols; col++ {
				spectrum = cube.Spectrum(row, col, spectrum)
				if err := pl.Fit(r.original, spectrum); err != nil {
					return pipeerr.New(stage, pipeerr.Input, "pixel (%d, %d): %v", row, col, err)
				}
				off := row*cube.Cols + col
				for b, w := range r.target {
					out.Data[b*plane+off] = pl.Predict(w)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// ResampleSpectrum interpolates a single spectrum sampled on original at the
// points of target. It applies the same validation as NewResampler.
func ResampleSpectrum(original, values, target []float64) ([]float64, error) {
	if len(values) != len(original) {
		return nil, pipeerr.New(stage, pipeerr.Shape,
			"spectrum has %d values but the grid has %d points", len(values), len(original))
	}
	r, err := NewResampler(original, target, 1)
	if err != nil {
		return nil, err
	}
	cube := &models.Cube{Data: values, Bands: len(values), Rows: 1, Cols: 1}
	out, err := r.Resample(context.Background(), cube)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}
