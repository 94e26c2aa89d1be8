package npy

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ChunkedWriter streams a sequence of equally shaped items into one .npy file,
// or into numbered files of at most ChunkSize items each.
type ChunkedWriter struct {
	base      string
	itemShape []int
	itemLen   int
	total     int
	chunkSize int

	current *Writer
	inChunk int
	written int
	paths   []string
}

// NewChunkedWriter prepares a writer for total items of itemShape. With
// chunkSize <= 0 (or >= total) everything goes to path itself. Otherwise
// chunk n (1-based) goes to <dir>/<stem>_<nnnn>.npy next to path.
func NewChunkedWriter(path string, itemShape []int, total, chunkSize int) *ChunkedWriter {
	n := 1
	for _, d := range itemShape {
		n *= d
	}
	if chunkSize <= 0 || chunkSize >= total {
		chunkSize = 0
	}
	return &ChunkedWriter{
		base:      path,
		itemShape: itemShape,
		itemLen:   n,
		total:     total,
		chunkSize: chunkSize,
	}
}

// ChunkPath returns the file name of the n-th chunk (1-based)
func ChunkPath(path string, n int) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	if ext == "" {
		ext = ".npy"
	}
	return fmt.Sprintf("%s_%04d%s", stem, n, ext)
}

// Append writes one item
func (c *ChunkedWriter) Append(item []float64) error {
	if len(item) != c.itemLen {
		return fmt.Errorf("item has %d values, want %d", len(item), c.itemLen)
	}
	if c.written >= c.total {
		return fmt.Errorf("more than %d items appended", c.total)
	}

	if c.current == nil {
		if err := c.open(); err != nil {
			return err
		}
	}
	if err := c.current.Write(item); err != nil {
		return err
	}
	c.inChunk++
	c.written++

	if c.chunkSize > 0 && c.inChunk == c.chunkSize {
		return c.closeCurrent()
	}
	return nil
}

func (c *ChunkedWriter) open() error {
	count := c.total
	path := c.base
	if c.chunkSize > 0 {
		count = c.chunkSize
		if remain := c.total - c.written; remain < count {
			count = remain
		}
		path = ChunkPath(c.base, len(c.paths)+1)
	}

	shape := append([]int{count}, c.itemShape...)
	w, err := Create(path, shape)
	if err != nil {
		return err
	}
	c.current = w
	c.inChunk = 0
	c.paths = append(c.paths, path)
	return nil
}

func (c *ChunkedWriter) closeCurrent() error {
	w := c.current
	c.current = nil
	return w.Close()
}

// Close finishes the last file. It fails if fewer items than declared were
// appended. A writer with zero declared items still produces an empty array.
func (c *ChunkedWriter) Close() error {
	if c.total == 0 && len(c.paths) == 0 {
		if err := c.open(); err != nil {
			return err
		}
	}
	if c.current != nil {
		if err := c.closeCurrent(); err != nil {
			return err
		}
	}
	if c.written != c.total {
		return fmt.Errorf("appended %d items, expected %d", c.written, c.total)
	}
	return nil
}

// Paths lists the files written so far
func (c *ChunkedWriter) Paths() []string {
	out := make([]string, len(c.paths))
	copy(out, c.paths)
	return out
}
