// Package npy writes NumPy .npy arrays. Small arrays go through npyio in one
// call. The patch collection is too large to hold in memory, so Writer streams
// float64 samples behind a header whose shape is fixed up front.
package npy

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"
)

var magic = []byte("\x93NUMPY")

// Writer streams little-endian float64 values into a .npy file
type Writer struct {
	path    string
	file    *os.File
	bw      *bufio.Writer
	want    int
	written int
	scratch [8]byte
}

// Create opens path and writes a version 1.0 header for a C-ordered '<f8'
// array of the given shape. Exactly prod(shape) values must follow.
func Create(path string, shape []int) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := &Writer{path: path, file: file, bw: bufio.NewWriterSize(file, 1<<20), want: 1}
	for _, d := range shape {
		w.want *= d
	}
	if _, err := w.bw.Write(Header("<f8", shape)); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return w, nil
}

// Header renders a version 1.0 .npy header padded to a 64 byte boundary
func Header(descr string, shape []int) []byte {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	tuple := strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", descr, tuple)

	// magic + version + header length + dict + padding + newline
	total := len(magic) + 2 + 2 + len(dict) + 1
	pad := (64 - total%64) % 64
	dict += strings.Repeat(" ", pad) + "\n"

	out := make([]byte, 0, len(magic)+4+len(dict))
	out = append(out, magic...)
	out = append(out, 1, 0)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(dict)))
	return append(out, dict...)
}

// Write appends values to the array body
func (w *Writer) Write(values []float64) error {
	if w.written+len(values) > w.want {
		return fmt.Errorf("%s: writing %d values overflows array of %d", w.path, len(values), w.want)
	}
	for _, v := range values {
		binary.LittleEndian.PutUint64(w.scratch[:], math.Float64bits(v))
		if _, err := w.bw.Write(w.scratch[:]); err != nil {
			return fmt.Errorf("failed to write %s: %w", w.path, err)
		}
	}
	w.written += len(values)
	return nil
}

// Close flushes the file and verifies the body matched the declared shape
func (w *Writer) Close() error {
	flushErr := w.bw.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to flush %s: %w", w.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", w.path, closeErr)
	}
	if w.written != w.want {
		return fmt.Errorf("%s: wrote %d values, header declares %d", w.path, w.written, w.want)
	}
	return nil
}

// Save writes a whole float64 array of the given shape
func Save(path string, shape []int, data []float64) error {
	w, err := Create(path, shape)
	if err != nil {
		return err
	}
	if err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// SaveInt64s writes a 1-D '<i8' array
func SaveInt64s(path string, data []int64) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	if err := npyio.Write(file, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Info describes a .npy file on disk
type Info struct {
	Descr   string
	Shape   []int
	Fortran bool
}

// Stat reads the header of a .npy file
func Stat(path string) (*Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r, err := npyio.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return &Info{
		Descr:   r.Header.Descr.Type,
		Shape:   r.Header.Descr.Shape,
		Fortran: r.Header.Descr.Fortran,
	}, nil
}

// LoadFloat64s reads a '<f8' array and its shape
func LoadFloat64s(path string) ([]float64, []int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r, err := npyio.NewReader(file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	var data []float64
	if err := r.Read(&data); err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, r.Header.Descr.Shape, nil
}

// LoadInt64s reads a 1-D '<i8' array
func LoadInt64s(path string) ([]int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var data []int64
	if err := npyio.Read(file, &data); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
