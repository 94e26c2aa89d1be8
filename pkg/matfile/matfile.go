// Package matfile reads and writes numeric arrays in the MATLAB Level 5 MAT-file
// format, the format the Indian Pines cube and ground truth are distributed in.
//
// Only full numeric (and logical) arrays are decoded. Cell, struct, char and
// sparse variables are listed but cannot be read. MAT v7.3 files are HDF5
// containers and are rejected with a hint to re-save them as v7.
package matfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Level 5 data element types
const (
	miINT8       = 1
	miUINT8      = 2
	miINT16      = 3
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miSINGLE     = 7
	miDOUBLE     = 9
	miINT64      = 12
	miUINT64     = 13
	miMATRIX     = 14
	miCOMPRESSED = 15
)

const headerSize = 128

// Class is the MATLAB array class of a variable
type Class uint8

// Array classes
const (
	ClassCell   Class = 1
	ClassStruct Class = 2
	ClassObject Class = 3
	ClassChar   Class = 4
	ClassSparse Class = 5
	ClassDouble Class = 6
	ClassSingle Class = 7
	ClassInt8   Class = 8
	ClassUint8  Class = 9
	ClassInt16  Class = 10
	ClassUint16 Class = 11
	ClassInt32  Class = 12
	ClassUint32 Class = 13
	ClassInt64  Class = 14
	ClassUint64 Class = 15
)

// Numeric reports whether arrays of this class can be decoded to float64
func (c Class) Numeric() bool {
	return c >= ClassDouble && c <= ClassUint64
}

// Integer reports whether the class stores integers
func (c Class) Integer() bool {
	return c >= ClassInt8 && c <= ClassUint64
}

func (c Class) String() string {
	names := map[Class]string{
		ClassCell: "cell", ClassStruct: "struct", ClassObject: "object",
		ClassChar: "char", ClassSparse: "sparse", ClassDouble: "double",
		ClassSingle: "single", ClassInt8: "int8", ClassUint8: "uint8",
		ClassInt16: "int16", ClassUint16: "uint16", ClassInt32: "int32",
		ClassUint32: "uint32", ClassInt64: "int64", ClassUint64: "uint64",
	}
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// Variable is one named array in a MAT-file
type Variable struct {
	// Name is the MATLAB variable name
	Name string

	// Class is the MATLAB array class
	Class Class

	// Dims are the array dimensions in MATLAB order
	Dims []int

	// Data holds the real part in column-major order. Nil for non-numeric classes.
	Data []float64

	// Complex is set when the array had an imaginary part, which is discarded
	Complex bool

	// Logical is set for MATLAB logical arrays
	Logical bool
}

// Len returns the number of elements implied by Dims
func (v *Variable) Len() int {
	n := 1
	for _, d := range v.Dims {
		n *= d
	}
	return n
}

// At returns the element at the given MATLAB subscripts (zero based)
func (v *Variable) At(idx ...int) float64 {
	off, stride := 0, 1
	for i, d := range v.Dims {
		if i < len(idx) {
			off += idx[i] * stride
		}
		stride *= d
	}
	return v.Data[off]
}

// File is a decoded MAT-file
type File struct {
	// Header is the descriptive text of the 128 byte file header
	Header string

	vars  map[string]*Variable
	order []string
}

// Names lists the variables in file order
func (f *File) Names() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Variable looks up a numeric variable by name
func (f *File) Variable(name string) (*Variable, error) {
	v, ok := f.vars[name]
	if !ok {
		return nil, fmt.Errorf("variable %q not found (have %s)", name, strings.Join(f.order, ", "))
	}
	if !v.Class.Numeric() {
		return nil, fmt.Errorf("variable %q has non-numeric class %s", name, v.Class)
	}
	return v, nil
}

// Open reads and decodes a MAT-file from disk
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return f, nil
}

// Decode parses the bytes of a complete Level 5 MAT-file
func Decode(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("file too short for a MAT header (%d bytes)", len(data))
	}

	text := strings.TrimRight(string(data[:116]), " \x00")
	if strings.HasPrefix(text, "MATLAB 7.3") {
		return nil, fmt.Errorf("MAT v7.3 (HDF5) files are not supported, re-save with -v7")
	}
	if !strings.HasPrefix(text, "MATLAB") {
		return nil, fmt.Errorf("missing MATLAB header text")
	}

	var order binary.ByteOrder
	switch string(data[126:128]) {
	case "IM":
		order = binary.LittleEndian
	case "MI":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid endian indicator %q", data[126:128])
	}

	f := &File{Header: text, vars: make(map[string]*Variable)}
	off := headerSize
	for off < len(data) {
		// Trailing padding shorter than a tag is tolerated
		if len(data)-off < 8 {
			break
		}
		typ, payload, next, err := readElement(data, off, order)
		if err != nil {
			return nil, fmt.Errorf("element at offset %d: %w", off, err)
		}

		switch typ {
		case miCOMPRESSED:
			inner, err := inflate(payload)
			if err != nil {
				return nil, fmt.Errorf("element at offset %d: %w", off, err)
			}
			ityp, ipayload, _, err := readElement(inner, 0, order)
			if err != nil {
				return nil, fmt.Errorf("compressed element at offset %d: %w", off, err)
			}
			if ityp == miMATRIX {
				if err := f.addMatrix(ipayload, order); err != nil {
					return nil, err
				}
			}
			// Compressed elements are not padded
			off += 8 + len(payload)
			continue
		case miMATRIX:
			if err := f.addMatrix(payload, order); err != nil {
				return nil, err
			}
		}
		off = next
	}

	return f, nil
}

func inflate(payload []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed element: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to inflate compressed element: %w", err)
	}
	return out, nil
}

// readElement returns the type and payload of the element at off and the
// offset of the following element.
func readElement(buf []byte, off int, order binary.ByteOrder) (uint32, []byte, int, error) {
	if off+8 > len(buf) {
		return 0, nil, 0, fmt.Errorf("truncated tag")
	}
	first := order.Uint32(buf[off:])

	// Small data element format: size in the upper half of the first word
	if size := first >> 16; size != 0 {
		if size > 4 {
			return 0, nil, 0, fmt.Errorf("small element claims %d bytes", size)
		}
		return first & 0xffff, buf[off+4 : off+4+int(size)], off + 8, nil
	}

	n := int(order.Uint32(buf[off+4:]))
	start := off + 8
	if n < 0 || start+n > len(buf) {
		return 0, nil, 0, fmt.Errorf("element of %d bytes overruns buffer", n)
	}
	return first, buf[start : start+n], start + pad8(n), nil
}

func pad8(n int) int {
	return (n + 7) &^ 7
}

func (f *File) addMatrix(payload []byte, order binary.ByteOrder) error {
	off := 0
	next := func(want string) (uint32, []byte, error) {
		typ, data, n, err := readElement(payload, off, order)
		if err != nil {
			return 0, nil, fmt.Errorf("matrix %s: %w", want, err)
		}
		off = n
		return typ, data, nil
	}

	// An empty matrix element is legal and carries nothing
	if len(payload) == 0 {
		return nil
	}

	_, flags, err := next("flags")
	if err != nil {
		return err
	}
	if len(flags) < 4 {
		return fmt.Errorf("matrix flags too short")
	}
	word := order.Uint32(flags)
	v := &Variable{
		Class:   Class(word & 0xff),
		Complex: word&0x0800 != 0,
		Logical: word&0x0200 != 0,
	}

	dtyp, dims, err := next("dimensions")
	if err != nil {
		return err
	}
	if dtyp != miINT32 || len(dims)%4 != 0 {
		return fmt.Errorf("matrix dimensions have type %d and %d bytes", dtyp, len(dims))
	}
	for i := 0; i < len(dims); i += 4 {
		d := int(int32(order.Uint32(dims[i:])))
		if d < 0 {
			return fmt.Errorf("negative dimension %d", d)
		}
		v.Dims = append(v.Dims, d)
	}

	_, name, err := next("name")
	if err != nil {
		return err
	}
	v.Name = string(name)

	if v.Class.Numeric() {
		rtyp, re, err := next("real part")
		if err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
		v.Data, err = decodeNumeric(rtyp, re, order)
		if err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
		if len(v.Data) != v.Len() {
			return fmt.Errorf("variable %q: %d values for dimensions %v", v.Name, len(v.Data), v.Dims)
		}
	}

	if _, dup := f.vars[v.Name]; !dup {
		f.order = append(f.order, v.Name)
	}
	f.vars[v.Name] = v
	return nil
}

// decodeNumeric widens a numeric data element to float64
func decodeNumeric(typ uint32, b []byte, order binary.ByteOrder) ([]float64, error) {
	size := elementSize(typ)
	if size == 0 {
		return nil, fmt.Errorf("unsupported numeric storage type %d", typ)
	}
	if len(b)%size != 0 {
		return nil, fmt.Errorf("%d bytes is not a multiple of element size %d", len(b), size)
	}

	out := make([]float64, len(b)/size)
	for i := range out {
		p := b[i*size:]
		switch typ {
		case miINT8:
			out[i] = float64(int8(p[0]))
		case miUINT8:
			out[i] = float64(p[0])
		case miINT16:
			out[i] = float64(int16(order.Uint16(p)))
		case miUINT16:
			out[i] = float64(order.Uint16(p))
		case miINT32:
			out[i] = float64(int32(order.Uint32(p)))
		case miUINT32:
			out[i] = float64(order.Uint32(p))
		case miSINGLE:
			out[i] = float64(math.Float32frombits(order.Uint32(p)))
		case miDOUBLE:
			out[i] = math.Float64frombits(order.Uint64(p))
		case miINT64:
			out[i] = float64(int64(order.Uint64(p)))
		case miUINT64:
			out[i] = float64(order.Uint64(p))
		}
	}
	return out, nil
}

func elementSize(typ uint32) int {
	switch typ {
	case miINT8, miUINT8:
		return 1
	case miINT16, miUINT16:
		return 2
	case miINT32, miUINT32, miSINGLE:
		return 4
	case miDOUBLE, miINT64, miUINT64:
		return 8
	default:
		return 0
	}
}
