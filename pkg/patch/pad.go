// Package patch pads a normalized cube by edge replication and cuts it into
// fixed-size spatial-spectral patches for a classifier.
package patch

import (
	"hsipatch/internal/models"
	"hsipatch/pkg/pipeerr"
)

// Pad returns a copy of cube enlarged by margin pixels on every side.
//
// The interior holds cube unchanged. The top and bottom margin rows copy the
// first and last interior row across the interior columns only. The left and
// right margin columns are then filled from the first and last interior column
// over the full padded height, so the corners take the values the row pass left
// in those columns.
func Pad(cube *models.Cube, margin int) (*models.Cube, error) {
	if margin < 0 {
		return nil, pipeerr.New("pad", pipeerr.Config, "margin must be non-negative, got %d", margin)
	}
	if cube.Rows == 0 || cube.Cols == 0 {
		return nil, pipeerr.New("pad", pipeerr.Shape, "cannot pad an empty %dx%d image", cube.Rows, cube.Cols)
	}

	rows, cols := cube.Rows+2*margin, cube.Cols+2*margin
	out := models.NewCube(cube.Bands, rows, cols)

	for b := 0; b < cube.Bands; b++ {
		src := cube.Band(b)
		dst := out.Band(b)

		// Interior
		for r := 0; r < cube.Rows; r++ {
			copy(dst[(r+margin)*cols+margin:(r+margin)*cols+margin+cube.Cols], src[r*cube.Cols:(r+1)*cube.Cols])
		}

		// Row pass over the interior column range
		top := dst[margin*cols+margin : margin*cols+margin+cube.Cols]
		last := (cube.Rows + margin - 1) * cols
		bottom := dst[last+margin : last+margin+cube.Cols]
		for p := 0; p < margin; p++ {
			copy(dst[p*cols+margin:p*cols+margin+cube.Cols], top)
			r := cube.Rows + margin + p
			copy(dst[r*cols+margin:r*cols+margin+cube.Cols], bottom)
		}

		// Column pass over the full padded height
		for q := 0; q < margin; q++ {
			for r := 0; r < rows; r++ {
				row := dst[r*cols : (r+1)*cols]
				row[q] = row[margin]
				row[cube.Cols+margin+q] = row[cube.Cols+margin-1]
			}
		}
	}

	return out, nil
}
