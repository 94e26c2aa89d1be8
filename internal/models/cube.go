package models

// Cube represents a hyperspectral image held in memory
type Cube struct {
	// Data holds the samples band-major: Data[b*Rows*Cols + r*Cols + c]
	Data []float64

	// Bands is the number of spectral channels
	Bands int

	// Rows and Cols are the spatial extent in pixels
	Rows int
	Cols int
}

// NewCube allocates a zero-filled cube of the given shape
func NewCube(bands, rows, cols int) *Cube {
	return &Cube{
		Data:  make([]float64, bands*rows*cols),
		Bands: bands,
		Rows:  rows,
		Cols:  cols,
	}
}

// Index returns the offset of (band, row, col) in Data
func (c *Cube) Index(band, row, col int) int {
	return band*c.Rows*c.Cols + row*c.Cols + col
}

// At returns the sample at (band, row, col)
func (c *Cube) At(band, row, col int) float64 {
	return c.Data[c.Index(band, row, col)]
}

// Set stores v at (band, row, col)
func (c *Cube) Set(band, row, col int, v float64) {
	c.Data[c.Index(band, row, col)] = v
}

// Band returns the row-major plane of one band. The slice aliases Data.
func (c *Cube) Band(band int) []float64 {
	n := c.Rows * c.Cols
	return c.Data[band*n : (band+1)*n]
}

// Spectrum copies the band values of one pixel into dst and returns it.
// dst is allocated when it is too short.
func (c *Cube) Spectrum(row, col int, dst []float64) []float64 {
	if cap(dst) < c.Bands {
		dst = make([]float64, c.Bands)
	}
	dst = dst[:c.Bands]
	plane := c.Rows * c.Cols
	off := row*c.Cols + col
	for b := range dst {
		dst[b] = c.Data[b*plane+off]
	}
	return dst
}

// Shape returns (bands, rows, cols)
func (c *Cube) Shape() []int {
	return []int{c.Bands, c.Rows, c.Cols}
}

// Clone returns an independent copy of the cube
func (c *Cube) Clone() *Cube {
	out := NewCube(c.Bands, c.Rows, c.Cols)
	copy(out.Data, c.Data)
	return out
}

// Patch is a (band, size, size) window cut out of a padded cube
type Patch struct {
	// Data holds the samples band-major: Data[b*Size*Size + y*Size + x]
	Data []float64

	Bands int
	Size  int
}

// NewPatch allocates a zero-filled patch
func NewPatch(bands, size int) *Patch {
	return &Patch{
		Data:  make([]float64, bands*size*size),
		Bands: bands,
		Size:  size,
	}
}

// At returns the sample at (band, y, x)
func (p *Patch) At(band, y, x int) float64 {
	return p.Data[band*p.Size*p.Size+y*p.Size+x]
}

// LabelGrid holds the ground-truth class of every pixel, row-major
type LabelGrid struct {
	Data []int64
	Rows int
	Cols int
}

// At returns the label at (row, col)
func (g *LabelGrid) At(row, col int) int64 {
	return g.Data[row*g.Cols+col]
}
