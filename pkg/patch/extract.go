package patch

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"hsipatch/internal/models"
	"hsipatch/pkg/pipeerr"
)

const stage = "extract"

// Extractor slides a Size x Size window over a padded cube
type Extractor struct {
	// Size is the patch edge length in pixels
	Size int

	// ConvDim selects the per-patch output shape: 2 gives (bands, size, size),
	// 3 adds a leading channel axis, (1, bands, size, size)
	ConvDim int

	// Workers bounds the patches extracted concurrently within one row
	Workers int
}

// NewExtractor validates the patch configuration.
//
// The window is only aligned with the label grid when the margin is exactly
// half the patch size, so odd sizes are rejected. Sizes below 2 leave no
// centre block to homogenize.
func NewExtractor(size, convDim, workers int) (*Extractor, error) {
	if size < 2 || size%2 != 0 {
		return nil, pipeerr.New(stage, pipeerr.Config, "patch size must be an even number >= 2, got %d", size)
	}
	if convDim != 2 && convDim != 3 {
		return nil, pipeerr.New(stage, pipeerr.Config, "convolution dimension must be 2 or 3, got %d", convDim)
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Extractor{Size: size, ConvDim: convDim, Workers: workers}, nil
}

// Margin is the border width Pad must add for this patch size
func (e *Extractor) Margin() int {
	return e.Size / 2
}

// Positions returns the number of top-left rows and columns the window visits.
// The last Size rows and columns of the padded cube are never a top-left
// corner, which for an even size leaves exactly the original image extent.
func (e *Extractor) Positions(padded *models.Cube) (rows, cols int) {
	rows, cols = padded.Rows-e.Size, padded.Cols-e.Size
	if rows < 0 || cols < 0 {
		return 0, 0
	}
	return rows, cols
}

// Count returns the number of patches Each will produce
func (e *Extractor) Count(padded *models.Cube) int {
	rows, cols := e.Positions(padded)
	return rows * cols
}

// Shape returns the array shape of one patch as written to disk
func (e *Extractor) Shape(bands int) []int {
	if e.ConvDim == 3 {
		return []int{1, bands, e.Size, e.Size}
	}
	return []int{bands, e.Size, e.Size}
}

// Extract copies the window whose top-left corner is (row, col) out of padded
// and homogenizes its centre. The patch never aliases padded. The window must
// lie inside padded.
func Extract(padded *models.Cube, row, col, size int) *models.Patch {
	p := models.NewPatch(padded.Bands, size)
	area := size * size
	for b := 0; b < padded.Bands; b++ {
		src := padded.Band(b)
		dst := p.Data[b*area : (b+1)*area]
		for y := 0; y < size; y++ {
			start := (row+y)*padded.Cols + col
			copy(dst[y*size:(y+1)*size], src[start:start+size])
		}
	}
	Homogenize(p)
	return p
}

// Homogenize overwrites the centre 2x2 block of every band with the value at
// (size/2-1, size/2-1).
func Homogenize(p *models.Patch) {
	k := p.Size/2 - 1
	area := p.Size * p.Size
	for b := 0; b < p.Bands; b++ {
		band := p.Data[b*area : (b+1)*area]
		v := band[k*p.Size+k]
		band[k*p.Size+k+1] = v
		band[(k+1)*p.Size+k] = v
		band[(k+1)*p.Size+k+1] = v
	}
}

// Each extracts every patch of padded and passes it to fn in row-major order
// of top-left positions, with index = row*cols + col. Patches of one row are
// extracted concurrently and handed to fn sequentially; fn may keep the patch.
// The first error from fn stops the walk.
func (e *Extractor) Each(ctx context.Context, padded *models.Cube, fn func(index int, p *models.Patch) error) error {
	rows, cols := e.Positions(padded)
	batch := make([]*models.Patch, cols)

	for i := 0; i < rows; i++ {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.Workers)
		for j := 0; j < cols; j++ {
			j := j
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				batch[j] = Extract(padded, i, j, e.Size)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for j := 0; j < cols; j++ {
			if err := fn(i*cols+j, batch[j]); err != nil {
				return err
			}
			batch[j] = nil
		}
	}
	return nil
}
