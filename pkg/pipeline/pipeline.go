// Package pipeline runs the complete preprocessing of a labeled hyperspectral
// scene: spectral resampling, band normalization, border padding, patch
// extraction and label flattening, writing every artifact to disk.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"hsipatch/internal/models"
	"hsipatch/pkg/config"
	"hsipatch/pkg/labels"
	"hsipatch/pkg/matfile"
	"hsipatch/pkg/normalize"
	"hsipatch/pkg/npy"
	"hsipatch/pkg/patch"
	"hsipatch/pkg/pipeerr"
	"hsipatch/pkg/spectral"
	"hsipatch/pkg/visualization"
	"hsipatch/pkg/wavelength"
)

// Params holds every input, output and tuning value of one run
type Params struct {
	// InputCube is the MAT-file holding the (rows, cols, bands) cube under CubeKey
	InputCube string
	CubeKey   string

	// InputLabels is the MAT-file holding the (rows, cols) ground truth under LabelKey
	InputLabels string
	LabelKey    string

	// OriginalWavelengths and TargetWavelengths are one-value-per-row CSV grids
	OriginalWavelengths string
	TargetWavelengths   string

	// OutputScaled receives the normalized cube when SaveScaled is set
	OutputScaled string
	SaveScaled   bool

	// OutputPatches receives the patch array, or the stem of its chunks
	OutputPatches string

	// OutputLabels receives the flat label sequence
	OutputLabels string

	// Heatmap receives a PNG of band HeatmapBand of the padded cube when RenderHeatmap is set
	Heatmap       string
	RenderHeatmap bool
	HeatmapBand   int
	HeatmapScale  int

	// PatchSize is the patch edge length; ConvDim selects 2-D or 3-D patch shape
	PatchSize int
	ConvDim   int

	// ChunkSize splits the patch output into files of at most this many patches
	ChunkSize int

	// TargetBands, when positive, must match the target grid length
	TargetBands int

	// LabelRows and LabelCols bound the label traversal; 0 means the full grid
	LabelRows int
	LabelCols int

	// NumCores bounds the parallelism inside the resampling and extraction stages
	NumCores int
}

// ParamsFromConfig builds run parameters from a loaded configuration
func ParamsFromConfig(cfg *config.Config) *Params {
	return &Params{
		InputCube:           cfg.Paths.InputCube,
		CubeKey:             cfg.Mat.CubeKey,
		InputLabels:         cfg.Paths.InputLabels,
		LabelKey:            cfg.Mat.LabelKey,
		OriginalWavelengths: cfg.Paths.OriginalWavelengths,
		TargetWavelengths:   cfg.Paths.TargetWavelengths,
		OutputScaled:        cfg.Paths.OutputScaled,
		SaveScaled:          cfg.Output.SaveScaled,
		OutputPatches:       cfg.PatchesPath(),
		OutputLabels:        cfg.Paths.OutputLabels,
		Heatmap:             cfg.Paths.Heatmap,
		RenderHeatmap:       cfg.Output.RenderHeatmap,
		HeatmapBand:         cfg.Output.HeatmapBand,
		HeatmapScale:        cfg.Output.HeatmapScale,
		PatchSize:           cfg.Patch.Size,
		ConvDim:             cfg.Patch.ConvDim,
		ChunkSize:           cfg.Patch.ChunkSize,
		TargetBands:         cfg.Processing.TargetBands,
		LabelRows:           cfg.Processing.LabelRows,
		LabelCols:           cfg.Processing.LabelCols,
		NumCores:            cfg.Processing.NumCores,
	}
}

// Summary describes the artifacts of a completed run
type Summary struct {
	// InputShape is the (bands, rows, cols) shape of the cube as loaded
	InputShape []int

	// ScaledShape is the shape after resampling and normalization
	ScaledShape []int

	// PaddedShape is the shape after border replication
	PaddedShape []int

	// PatchShape is the on-disk shape of one patch
	PatchShape []int

	// PatchCount and LabelCount are the lengths of the two aligned outputs
	PatchCount int
	LabelCount int

	// PatchFiles lists the patch files written, in order
	PatchFiles []string

	// ScaledMean and ScaledStd are taken over every sample of the scaled cube
	ScaledMean float64
	ScaledStd  float64

	// Durations records the wall time of each step by name
	Durations map[string]time.Duration
}

// Pipeline runs the preprocessing steps in order over one scene.
//
// The steps are:
// 1. Loading the cube, labels and wavelength grids
// 2. Resampling every spectrum onto the target grid
// 3. Standardizing every band
// 4. Padding the image by edge replication
// 5. Extracting and streaming patches
// 6. Flattening the labels
type Pipeline struct {
	params *Params
	log    *logrus.Logger

	original []float64
	target   []float64
	cube     *models.Cube
	grid     *models.LabelGrid
	scaled   *models.Cube
	padded   *models.Cube

	summary Summary
}

// NewPipeline creates a pipeline for the given parameters. A nil logger uses
// the logrus standard logger.
func NewPipeline(params *Params, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{
		params:  params,
		log:     logger,
		summary: Summary{Durations: make(map[string]time.Duration)},
	}
}

// Process runs the complete pipeline. The first failure aborts the run.
func (p *Pipeline) Process(ctx context.Context) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"load", p.loadInputs},
		{"resample", p.resample},
		{"normalize", p.normalize},
		{"pad", p.pad},
		{"extract", p.extractPatches},
		{"labels", p.flattenLabels},
	}

	for i, step := range steps {
		p.log.WithField("stage", step.name).Infof("Step %d: %s", i+1, stepTitles[step.name])
		start := time.Now()
		if err := step.run(ctx); err != nil {
			return fmt.Errorf("step %d (%s) failed: %w", i+1, step.name, err)
		}
		elapsed := time.Since(start)
		p.summary.Durations[step.name] = elapsed
		p.log.WithFields(logrus.Fields{"stage": step.name, "elapsed": elapsed.Round(time.Millisecond)}).Info("Done")
	}

	if p.summary.PatchCount != p.summary.LabelCount {
		p.log.WithFields(logrus.Fields{
			"patches": p.summary.PatchCount,
			"labels":  p.summary.LabelCount,
		}).Warn("Patch and label counts differ; outputs do not align index for index")
	}
	return nil
}

var stepTitles = map[string]string{
	"load":      "Loading cube, labels and wavelength grids...",
	"resample":  "Resampling spectra onto the target grid...",
	"normalize": "Standardizing bands...",
	"pad":       "Padding borders by edge replication...",
	"extract":   "Extracting patches...",
	"labels":    "Flattening labels...",
}

// GetSummary returns the description of the last run
func (p *Pipeline) GetSummary() Summary {
	return p.summary
}

// loadInputs reads both MAT-files and both wavelength grids
func (p *Pipeline) loadInputs(ctx context.Context) error {
	var err error

	p.original, err = wavelength.ReadGrid(p.params.OriginalWavelengths)
	if err != nil {
		return pipeerr.Wrap("load", pipeerr.Input, fmt.Errorf("original wavelengths: %w", err))
	}
	p.target, err = wavelength.ReadGrid(p.params.TargetWavelengths)
	if err != nil {
		return pipeerr.Wrap("load", pipeerr.Input, fmt.Errorf("target wavelengths: %w", err))
	}
	if p.params.TargetBands > 0 && p.params.TargetBands != len(p.target) {
		return pipeerr.New("load", pipeerr.Config,
			"target band count is %d but the target grid has %d points", p.params.TargetBands, len(p.target))
	}

	cubeFile, err := matfile.Open(p.params.InputCube)
	if err != nil {
		return pipeerr.Wrap("load", pipeerr.Input, err)
	}
	v, err := cubeFile.Variable(p.params.CubeKey)
	if err != nil {
		return pipeerr.Wrap("load", pipeerr.Input, fmt.Errorf("%s: %w", p.params.InputCube, err))
	}
	p.cube, err = v.Cube()
	if err != nil {
		return pipeerr.Wrap("load", pipeerr.Input, fmt.Errorf("%s: %w", p.params.InputCube, err))
	}

	labelFile, err := matfile.Open(p.params.InputLabels)
	if err != nil {
		return pipeerr.Wrap("load", pipeerr.Input, err)
	}
	lv, err := labelFile.Variable(p.params.LabelKey)
	if err != nil {
		return pipeerr.Wrap("load", pipeerr.Input, fmt.Errorf("%s: %w", p.params.InputLabels, err))
	}
	p.grid, err = lv.LabelGrid()
	if err != nil {
		return pipeerr.Wrap("load", pipeerr.Input, fmt.Errorf("%s: %w", p.params.InputLabels, err))
	}
	if p.grid.Rows != p.cube.Rows || p.grid.Cols != p.cube.Cols {
		return pipeerr.New("load", pipeerr.Shape, "label grid is %dx%d but the cube is %dx%d",
			p.grid.Rows, p.grid.Cols, p.cube.Rows, p.cube.Cols)
	}

	p.summary.InputShape = p.cube.Shape()
	p.log.WithFields(logrus.Fields{
		"bands":         p.cube.Bands,
		"rows":          p.cube.Rows,
		"cols":          p.cube.Cols,
		"targetBands":   len(p.target),
		"originalRange": fmt.Sprintf("[%g, %g]", p.original[0], p.original[len(p.original)-1]),
	}).Info("Loaded scene")
	return nil
}

// resample moves every spectrum onto the target wavelength grid
func (p *Pipeline) resample(ctx context.Context) error {
	r, err := spectral.NewResampler(p.original, p.target, p.params.NumCores)
	if err != nil {
		return err
	}
	out, err := r.Resample(ctx, p.cube)
	if err != nil {
		return err
	}
	p.cube = out
	return nil
}

// normalize standardizes every band and optionally saves the scaled cube
func (p *Pipeline) normalize(ctx context.Context) error {
	var n normalize.BandNormalizer
	scaled, err := n.Normalize(p.cube)
	if err != nil {
		return err
	}
	p.scaled = scaled
	p.summary.ScaledShape = scaled.Shape()
	p.summary.ScaledMean, p.summary.ScaledStd = stat.PopMeanStdDev(scaled.Data, nil)

	if p.log.IsLevelEnabled(logrus.DebugLevel) {
		for b := range n.Mean {
			p.log.WithFields(logrus.Fields{"band": b, "mean": n.Mean[b], "std": n.Scale[b]}).Debug("Band statistics")
		}
	}

	if p.params.SaveScaled {
		if err := npy.Save(p.params.OutputScaled, scaled.Shape(), scaled.Data); err != nil {
			return fmt.Errorf("failed to save scaled cube: %w", err)
		}
		p.log.WithField("path", p.params.OutputScaled).Info("Saved interpolated and scaled cube")
	}
	return nil
}

// pad enlarges the scaled cube by half a patch on every side
func (p *Pipeline) pad(ctx context.Context) error {
	e, err := patch.NewExtractor(p.params.PatchSize, p.params.ConvDim, p.params.NumCores)
	if err != nil {
		return err
	}
	padded, err := patch.Pad(p.scaled, e.Margin())
	if err != nil {
		return err
	}
	p.padded = padded
	p.summary.PaddedShape = padded.Shape()

	if p.params.RenderHeatmap {
		h := visualization.NewHeatmap(p.params.HeatmapScale)
		if err := h.Save(padded, p.params.HeatmapBand, p.params.Heatmap); err != nil {
			// Diagnostic only
			p.log.WithError(err).Warn("Failed to render heatmap")
		} else {
			p.log.WithFields(logrus.Fields{"path": p.params.Heatmap, "band": p.params.HeatmapBand}).Info("Saved heatmap")
		}
	}
	return nil
}

// extractPatches streams every patch to disk in row-major order
func (p *Pipeline) extractPatches(ctx context.Context) error {
	e, err := patch.NewExtractor(p.params.PatchSize, p.params.ConvDim, p.params.NumCores)
	if err != nil {
		return err
	}

	total := e.Count(p.padded)
	shape := e.Shape(p.padded.Bands)
	w := npy.NewChunkedWriter(p.params.OutputPatches, shape, total, p.params.ChunkSize)

	rows, cols := e.Positions(p.padded)
	err = e.Each(ctx, p.padded, func(index int, pt *models.Patch) error {
		if err := w.Append(pt.Data); err != nil {
			return err
		}
		if (index+1)%cols == 0 {
			p.log.Debugf("Extracted row %d/%d", (index+1)/cols, rows)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return fmt.Errorf("failed to write patches: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write patches: %w", err)
	}

	p.summary.PatchCount = total
	p.summary.PatchShape = shape
	p.summary.PatchFiles = w.Paths()
	p.log.WithFields(logrus.Fields{
		"patches": total,
		"shape":   fmt.Sprint(shape),
		"files":   len(p.summary.PatchFiles),
	}).Info("Saved patches")
	return nil
}

// flattenLabels writes the ground truth as a flat row-major sequence
func (p *Pipeline) flattenLabels(ctx context.Context) error {
	rows, cols := p.params.LabelRows, p.params.LabelCols
	if rows == 0 {
		rows = p.grid.Rows
	}
	if cols == 0 {
		cols = p.grid.Cols
	}

	seq, err := labels.FlattenExtent(p.grid, rows, cols)
	if err != nil {
		return err
	}
	if err := npy.SaveInt64s(p.params.OutputLabels, seq); err != nil {
		return fmt.Errorf("failed to save labels: %w", err)
	}

	p.summary.LabelCount = len(seq)
	p.log.WithFields(logrus.Fields{"labels": len(seq), "path": p.params.OutputLabels}).Info("Saved labels")
	return nil
}
