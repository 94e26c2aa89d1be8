package matfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/klauspost/compress/zlib"
)

// Encode writes vars as a little-endian Level 5 MAT-file. Each variable's
// Data is stored with the storage type native to its Class. When compress is
// set every variable is wrapped in a zlib compressed element, as MATLAB does
// for -v7 files.
func Encode(w io.Writer, vars []*Variable, compress bool) error {
	order := binary.LittleEndian

	header := make([]byte, headerSize)
	for i := range header[:116] {
		header[i] = ' '
	}
	copy(header, fmt.Sprintf("MATLAB 5.0 MAT-file, Platform: GLNXA64, Created on: %s",
		time.Now().UTC().Format("Mon Jan 2 15:04:05 2006")))
	order.PutUint16(header[124:], 0x0100)
	copy(header[126:], "IM")
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, v := range vars {
		matrix, err := encodeMatrix(v, order)
		if err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}

		if !compress {
			if _, err := w.Write(matrix); err != nil {
				return fmt.Errorf("failed to write variable %q: %w", v.Name, err)
			}
			continue
		}

		var zbuf bytes.Buffer
		zw := zlib.NewWriter(&zbuf)
		if _, err := zw.Write(matrix); err != nil {
			return fmt.Errorf("failed to compress variable %q: %w", v.Name, err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to compress variable %q: %w", v.Name, err)
		}

		tag := make([]byte, 8)
		order.PutUint32(tag, miCOMPRESSED)
		order.PutUint32(tag[4:], uint32(zbuf.Len()))
		if _, err := w.Write(tag); err != nil {
			return fmt.Errorf("failed to write variable %q: %w", v.Name, err)
		}
		if _, err := w.Write(zbuf.Bytes()); err != nil {
			return fmt.Errorf("failed to write variable %q: %w", v.Name, err)
		}
	}

	return nil
}

// WriteFile encodes vars into a new file at path
func WriteFile(path string, vars []*Variable, compress bool) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return Encode(file, vars, compress)
}

func encodeMatrix(v *Variable, order binary.ByteOrder) ([]byte, error) {
	if !v.Class.Numeric() {
		return nil, fmt.Errorf("cannot encode class %s", v.Class)
	}
	if len(v.Data) != v.Len() {
		return nil, fmt.Errorf("%d values for dimensions %v", len(v.Data), v.Dims)
	}

	var body bytes.Buffer

	flags := make([]byte, 8)
	word := uint32(v.Class)
	if v.Logical {
		word |= 0x0200
	}
	order.PutUint32(flags, word)
	writeElement(&body, miUINT32, flags, order)

	dims := make([]byte, 4*len(v.Dims))
	for i, d := range v.Dims {
		order.PutUint32(dims[4*i:], uint32(int32(d)))
	}
	writeElement(&body, miINT32, dims, order)

	writeElement(&body, miINT8, []byte(v.Name), order)

	typ, raw := encodeNumeric(v.Class, v.Data, order)
	writeElement(&body, typ, raw, order)

	var out bytes.Buffer
	tag := make([]byte, 8)
	order.PutUint32(tag, miMATRIX)
	order.PutUint32(tag[4:], uint32(body.Len()))
	out.Write(tag)
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// writeElement appends a tagged, 8 byte aligned data element. Payloads of at
// most 4 bytes use the small element format.
func writeElement(buf *bytes.Buffer, typ uint32, payload []byte, order binary.ByteOrder) {
	if n := len(payload); n > 0 && n <= 4 {
		small := make([]byte, 8)
		order.PutUint32(small, uint32(n)<<16|typ)
		copy(small[4:], payload)
		buf.Write(small)
		return
	}

	tag := make([]byte, 8)
	order.PutUint32(tag, typ)
	order.PutUint32(tag[4:], uint32(len(payload)))
	buf.Write(tag)
	buf.Write(payload)
	if pad := pad8(len(payload)) - len(payload); pad > 0 {
		buf.Write(make([]byte, pad))
	}
}

func encodeNumeric(class Class, data []float64, order binary.ByteOrder) (uint32, []byte) {
	var typ uint32
	switch class {
	case ClassDouble:
		typ = miDOUBLE
	case ClassSingle:
		typ = miSINGLE
	case ClassInt8:
		typ = miINT8
	case ClassUint8:
		typ = miUINT8
	case ClassInt16:
		typ = miINT16
	case ClassUint16:
		typ = miUINT16
	case ClassInt32:
		typ = miINT32
	case ClassUint32:
		typ = miUINT32
	case ClassInt64:
		typ = miINT64
	case ClassUint64:
		typ = miUINT64
	}

	size := elementSize(typ)
	raw := make([]byte, size*len(data))
	for i, x := range data {
		p := raw[i*size:]
		switch typ {
		case miDOUBLE:
			order.PutUint64(p, math.Float64bits(x))
		case miSINGLE:
			order.PutUint32(p, math.Float32bits(float32(x)))
		case miINT8:
			p[0] = byte(int8(x))
		case miUINT8:
			p[0] = uint8(x)
		case miINT16:
			order.PutUint16(p, uint16(int16(x)))
		case miUINT16:
			order.PutUint16(p, uint16(x))
		case miINT32:
			order.PutUint32(p, uint32(int32(x)))
		case miUINT32:
			order.PutUint32(p, uint32(x))
		case miINT64:
			order.PutUint64(p, uint64(int64(x)))
		case miUINT64:
			order.PutUint64(p, uint64(x))
		}
	}
	return typ, raw
}
