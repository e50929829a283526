// Package matfile reads and writes Level 5 MAT-files.
//
// The encoder reproduces the byte layout emitted by scipy's savemat (format 5)
// so files written here are interchangeable with datasets prepared by the
// Python toolchain that downstream evaluation tools were built against:
//
//	header   116-byte description (NUL padded), 8 zero bytes, version 0x0100, "IM"
//	variable miMATRIX tag, array flags (miUINT32 x2), dimensions (miINT32),
//	         name (miINT8), then class data
//	cell     one nested miMATRIX per element, column-major, empty names
//	struct   field name length (miINT32), packed field names (miINT8), then one
//	         nested miMATRIX per element per field
//
// Data elements of 4 bytes or less use the compressed "small element" tag.
// Every other element is padded to an 8-byte boundary.
package matfile

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Class is a MATLAB array class (mxCLASS).
type Class uint8

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

func (c Class) String() string {
	switch c {
	case ClassCell:
		return "cell"
	case ClassStruct:
		return "struct"
	case ClassObject:
		return "object"
	case ClassChar:
		return "char"
	case ClassSparse:
		return "sparse"
	case ClassDouble:
		return "double"
	case ClassSingle:
		return "single"
	case ClassInt8:
		return "int8"
	case ClassUint8:
		return "uint8"
	case ClassInt16:
		return "int16"
	case ClassUint16:
		return "uint16"
	case ClassInt32:
		return "int32"
	case ClassUint32:
		return "uint32"
	case ClassInt64:
		return "int64"
	case ClassUint64:
		return "uint64"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Data element types (miTYPE).
const (
	miINT8       uint32 = 1
	miUINT8      uint32 = 2
	miINT16      uint32 = 3
	miUINT16     uint32 = 4
	miINT32      uint32 = 5
	miUINT32     uint32 = 6
	miSINGLE     uint32 = 7
	miDOUBLE     uint32 = 9
	miINT64      uint32 = 12
	miUINT64     uint32 = 13
	miMATRIX     uint32 = 14
	miCOMPRESSED uint32 = 15
	miUTF8       uint32 = 16
	miUTF16      uint32 = 17
	miUTF32      uint32 = 18
)

// Array flag bits, stored in the second byte of the flags word.
const (
	flagLogical = 1 << 1
	flagGlobal  = 1 << 2
	flagComplex = 1 << 3
)

const (
	headerSize      = 128
	descriptionSize = 116
	fileVersion     = 0x0100
)

// Array is any value that can be stored in a MAT-file variable.
type Array interface {
	Shape() []int
	Class() Class
}

// Variable is a named top-level entry in a MAT-file.
type Variable struct {
	Name   string
	Value  Array
	Global bool
}

// File is a decoded MAT-file.
type File struct {
	Description string
	Vars        []Variable
}

// Lookup returns the value of the named variable.
func (f *File) Lookup(name string) (Array, bool) {
	for _, v := range f.Vars {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

// Numeric is a real numeric or logical array. Data is one of []int8, []uint8,
// []int16, []uint16, []int32, []uint32, []int64, []uint64, []float32 or
// []float64 matching Type, in column-major order.
type Numeric struct {
	Dims    []int
	Type    Class
	Logical bool
	Data    any
}

func (n *Numeric) Shape() []int { return n.Dims }
func (n *Numeric) Class() Class { return n.Type }

// NewUint8 builds a uint8 array from column-major data.
func NewUint8(dims []int, data []uint8) *Numeric {
	return &Numeric{Dims: dims, Type: ClassUint8, Data: data}
}

// NewSingle builds a single-precision array from column-major data.
func NewSingle(dims []int, data []float32) *Numeric {
	return &Numeric{Dims: dims, Type: ClassSingle, Data: data}
}

// NewDouble builds a double-precision array from column-major data.
func NewDouble(dims []int, data []float64) *Numeric {
	return &Numeric{Dims: dims, Type: ClassDouble, Data: data}
}

// Len returns the number of elements.
func (n *Numeric) Len() int {
	return numel(n.Dims)
}

// Float64s returns a copy of the data converted to float64.
func (n *Numeric) Float64s() []float64 {
	switch d := n.Data.(type) {
	case []float64:
		return append([]float64(nil), d...)
	case []float32:
		return convert(d)
	case []int8:
		return convert(d)
	case []uint8:
		return convert(d)
	case []int16:
		return convert(d)
	case []uint16:
		return convert(d)
	case []int32:
		return convert(d)
	case []uint32:
		return convert(d)
	case []int64:
		return convert(d)
	case []uint64:
		return convert(d)
	}
	return nil
}

// At returns element (i, j) of a 2-D array as float64.
func (n *Numeric) At(i, j int) float64 {
	k := j*n.Dims[0] + i
	switch d := n.Data.(type) {
	case []float64:
		return d[k]
	case []float32:
		return float64(d[k])
	case []int8:
		return float64(d[k])
	case []uint8:
		return float64(d[k])
	case []int16:
		return float64(d[k])
	case []uint16:
		return float64(d[k])
	case []int32:
		return float64(d[k])
	case []uint32:
		return float64(d[k])
	case []int64:
		return float64(d[k])
	case []uint64:
		return float64(d[k])
	}
	panic(fmt.Sprintf("matfile: unsupported data %T", n.Data))
}

// Dense returns a 2-D array as a gonum matrix.
func (n *Numeric) Dense() (*mat.Dense, error) {
	if len(n.Dims) != 2 {
		return nil, fmt.Errorf("array has %d dimensions, want 2", len(n.Dims))
	}
	rows, cols := n.Dims[0], n.Dims[1]
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("empty %dx%d array", rows, cols)
	}
	colMajor := n.Float64s()
	// gonum is row-major; the file is column-major.
	data := make([]float64, rows*cols)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			data[i*cols+j] = colMajor[j*rows+i]
		}
	}
	return mat.NewDense(rows, cols, data), nil
}

// Char is a character array.
type Char struct {
	Dims []int
	Text string
}

func (c *Char) Shape() []int { return c.Dims }
func (c *Char) Class() Class { return ClassChar }

// Cell is a cell array with elements in column-major order.
type Cell struct {
	Dims  []int
	Elems []Array
}

func (c *Cell) Shape() []int { return c.Dims }
func (c *Cell) Class() Class { return ClassCell }

// NewCell builds a cell array.
func NewCell(dims []int, elems ...Array) *Cell {
	return &Cell{Dims: dims, Elems: elems}
}

// At returns element (i, j) of a 2-D cell array.
func (c *Cell) At(i, j int) Array {
	return c.Elems[j*c.Dims[0]+i]
}

// Struct is a struct array. Values[k][f] holds field Fields[f] of element k,
// elements in column-major order.
type Struct struct {
	Dims   []int
	Fields []string
	Values [][]Array
}

func (s *Struct) Shape() []int { return s.Dims }
func (s *Struct) Class() Class { return ClassStruct }

// NewStruct builds a struct array.
func NewStruct(dims []int, fields []string, values ...[]Array) *Struct {
	return &Struct{Dims: dims, Fields: fields, Values: values}
}

// Field returns the named field of element k.
func (s *Struct) Field(k int, name string) (Array, bool) {
	if k < 0 || k >= len(s.Values) {
		return nil, false
	}
	for f, fn := range s.Fields {
		if fn == name {
			return s.Values[k][f], true
		}
	}
	return nil, false
}

func numel(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

func dataLen(data any) int {
	switch d := data.(type) {
	case []float64:
		return len(d)
	case []float32:
		return len(d)
	case []int8:
		return len(d)
	case []uint8:
		return len(d)
	case []int16:
		return len(d)
	case []uint16:
		return len(d)
	case []int32:
		return len(d)
	case []uint32:
		return len(d)
	case []int64:
		return len(d)
	case []uint64:
		return len(d)
	}
	return 0
}

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

func convert[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
