package matfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf16"
)

// ErrNotMAT is returned when the input does not carry a Level 5 header.
var ErrNotMAT = errors.New("not a level 5 MAT-file")

// ReadFile decodes the MAT-file at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Decode parses a complete MAT-file held in memory.
func Decode(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, ErrNotMAT
	}
	var bo binary.ByteOrder
	switch string(data[126:128]) {
	case "IM":
		bo = binary.LittleEndian
	case "MI":
		bo = binary.BigEndian
	default:
		return nil, ErrNotMAT
	}
	if v := bo.Uint16(data[124:126]); v != fileVersion {
		return nil, fmt.Errorf("unsupported MAT-file version 0x%04x", v)
	}

	f := &File{
		Description: strings.TrimRight(string(data[:descriptionSize]), " \x00"),
	}
	d := &decoder{bo: bo}
	rest := data[headerSize:]
	for len(rest) > 0 {
		mtype, payload, next, err := d.element(rest)
		if err != nil {
			return nil, err
		}
		rest = next
		if mtype == miCOMPRESSED {
			if mtype, payload, err = d.inflate(payload); err != nil {
				return nil, err
			}
		}
		if mtype != miMATRIX {
			return nil, fmt.Errorf("unexpected top-level element type %d", mtype)
		}
		v, err := d.matrix(payload)
		if err != nil {
			return nil, err
		}
		f.Vars = append(f.Vars, v)
	}
	return f, nil
}

type decoder struct {
	bo binary.ByteOrder
}

// element splits the next data element off b.
func (d *decoder) element(b []byte) (mtype uint32, payload, rest []byte, err error) {
	if len(b) < 8 {
		return 0, nil, nil, io.ErrUnexpectedEOF
	}
	first := d.bo.Uint32(b)
	if size := first >> 16; size != 0 {
		// small element: size and type packed in the first word
		if size > 4 {
			return 0, nil, nil, fmt.Errorf("small element of %d bytes", size)
		}
		return first & 0xFFFF, b[4 : 4+size], b[8:], nil
	}
	mtype = first
	n := int(d.bo.Uint32(b[4:]))
	if len(b) < 8+n {
		return 0, nil, nil, io.ErrUnexpectedEOF
	}
	payload = b[8 : 8+n]
	end := 8 + n
	if mtype != miCOMPRESSED {
		if pad := n % 8; pad != 0 {
			end += 8 - pad
		}
		if end > len(b) {
			end = len(b)
		}
	}
	return mtype, payload, b[end:], nil
}

func (d *decoder) inflate(payload []byte) (uint32, []byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("compressed element: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return 0, nil, fmt.Errorf("compressed element: %w", err)
	}
	mtype, inner, _, err := d.element(raw)
	return mtype, inner, err
}

// matrix decodes the payload of an miMATRIX element.
func (d *decoder) matrix(b []byte) (Variable, error) {
	if len(b) == 0 {
		// MATLAB writes empty cell contents as zero-length matrices
		return Variable{Value: NewDouble([]int{0, 0}, nil)}, nil
	}
	mtype, flagsData, b, err := d.element(b)
	if err != nil {
		return Variable{}, err
	}
	if mtype != miUINT32 || len(flagsData) < 8 {
		return Variable{}, fmt.Errorf("malformed array flags")
	}
	word := d.bo.Uint32(flagsData)
	class := Class(word & 0xFF)
	flags := (word >> 8) & 0xFF

	mtype, dimData, b, err := d.element(b)
	if err != nil {
		return Variable{}, err
	}
	if mtype != miINT32 {
		return Variable{}, fmt.Errorf("malformed dimensions")
	}
	dims := make([]int, len(dimData)/4)
	for i := range dims {
		dims[i] = int(int32(d.bo.Uint32(dimData[4*i:])))
	}

	_, nameData, b, err := d.element(b)
	if err != nil {
		return Variable{}, err
	}
	v := Variable{
		Name:   string(bytes.TrimRight(nameData, "\x00")),
		Global: flags&flagGlobal != 0,
	}

	if flags&flagComplex != 0 {
		return v, fmt.Errorf("%s: complex arrays are not supported", v.Name)
	}

	switch class {
	case ClassCell:
		c := &Cell{Dims: dims}
		for i := 0; i < numel(dims); i++ {
			var sub []byte
			if mtype, sub, b, err = d.element(b); err != nil {
				return v, err
			}
			if mtype != miMATRIX {
				return v, fmt.Errorf("cell element %d has type %d", i, mtype)
			}
			el, err := d.matrix(sub)
			if err != nil {
				return v, err
			}
			c.Elems = append(c.Elems, el.Value)
		}
		v.Value = c
	case ClassStruct:
		s, err := d.structArray(dims, b)
		if err != nil {
			return v, err
		}
		v.Value = s
	case ClassChar:
		mtype, data, _, err := d.element(b)
		if err != nil {
			return v, err
		}
		v.Value = &Char{Dims: dims, Text: d.text(mtype, data)}
	case ClassDouble, ClassSingle, ClassInt8, ClassUint8, ClassInt16, ClassUint16,
		ClassInt32, ClassUint32, ClassInt64, ClassUint64:
		mtype, data, _, err := d.element(b)
		if err != nil {
			return v, err
		}
		vals, err := d.numbers(mtype, data)
		if err != nil {
			return v, err
		}
		if dataLen(vals) != numel(dims) {
			return v, fmt.Errorf("%d values for dims %v", dataLen(vals), dims)
		}
		v.Value = &Numeric{
			Dims:    dims,
			Type:    class,
			Logical: flags&flagLogical != 0,
			Data:    castTo(class, vals),
		}
	default:
		return v, fmt.Errorf("%s arrays are not supported", class)
	}
	return v, nil
}

func (d *decoder) structArray(dims []int, b []byte) (*Struct, error) {
	_, lenData, b, err := d.element(b)
	if err != nil {
		return nil, err
	}
	if len(lenData) < 4 {
		return nil, fmt.Errorf("malformed field name length")
	}
	length := int(d.bo.Uint32(lenData))
	_, names, b, err := d.element(b)
	if err != nil {
		return nil, err
	}
	s := &Struct{Dims: dims}
	if length > 0 {
		for i := 0; i+length <= len(names); i += length {
			s.Fields = append(s.Fields, string(bytes.TrimRight(names[i:i+length], "\x00")))
		}
	}
	for k := 0; k < numel(dims); k++ {
		vals := make([]Array, len(s.Fields))
		for f := range s.Fields {
			var (
				mtype uint32
				sub   []byte
			)
			if mtype, sub, b, err = d.element(b); err != nil {
				return nil, err
			}
			if mtype != miMATRIX {
				return nil, fmt.Errorf("struct field %s has type %d", s.Fields[f], mtype)
			}
			el, err := d.matrix(sub)
			if err != nil {
				return nil, err
			}
			vals[f] = el.Value
		}
		s.Values = append(s.Values, vals)
	}
	return s, nil
}

func (d *decoder) text(mtype uint32, data []byte) string {
	switch mtype {
	case miUTF8, miINT8, miUINT8:
		return string(data)
	case miUTF32:
		var sb strings.Builder
		for i := 0; i+4 <= len(data); i += 4 {
			sb.WriteRune(rune(d.bo.Uint32(data[i:])))
		}
		return sb.String()
	default:
		units := make([]uint16, len(data)/2)
		for i := range units {
			units[i] = d.bo.Uint16(data[2*i:])
		}
		return string(utf16.Decode(units))
	}
}

// numbers decodes a numeric data element into a slice of its storage type;
// MATLAB may store values in a narrower type than the array class.
func (d *decoder) numbers(mtype uint32, data []byte) (any, error) {
	switch mtype {
	case miINT8:
		out := make([]int8, len(data))
		for i, b := range data {
			out[i] = int8(b)
		}
		return out, nil
	case miUINT8:
		return append([]uint8(nil), data...), nil
	case miINT16:
		return decodeWords(data, 2, func(p []byte) int16 { return int16(d.bo.Uint16(p)) }), nil
	case miUINT16:
		return decodeWords(data, 2, d.bo.Uint16), nil
	case miINT32:
		return decodeWords(data, 4, func(p []byte) int32 { return int32(d.bo.Uint32(p)) }), nil
	case miUINT32:
		return decodeWords(data, 4, d.bo.Uint32), nil
	case miSINGLE:
		return decodeWords(data, 4, func(p []byte) float32 { return math.Float32frombits(d.bo.Uint32(p)) }), nil
	case miDOUBLE:
		return decodeWords(data, 8, func(p []byte) float64 { return math.Float64frombits(d.bo.Uint64(p)) }), nil
	case miINT64:
		return decodeWords(data, 8, func(p []byte) int64 { return int64(d.bo.Uint64(p)) }), nil
	case miUINT64:
		return decodeWords(data, 8, d.bo.Uint64), nil
	default:
		return nil, fmt.Errorf("unsupported numeric data type %d", mtype)
	}
}

func decodeWords[T number](data []byte, size int, read func([]byte) T) []T {
	out := make([]T, len(data)/size)
	for i := range out {
		out[i] = read(data[i*size:])
	}
	return out
}

// castTo converts stored values to the Go type of class. Values already held
// in that type are returned unchanged.
func castTo(class Class, stored any) any {
	switch class {
	case ClassDouble:
		return castAny[float64](stored)
	case ClassSingle:
		return castAny[float32](stored)
	case ClassInt8:
		return castAny[int8](stored)
	case ClassUint8:
		return castAny[uint8](stored)
	case ClassInt16:
		return castAny[int16](stored)
	case ClassUint16:
		return castAny[uint16](stored)
	case ClassInt32:
		return castAny[int32](stored)
	case ClassUint32:
		return castAny[uint32](stored)
	case ClassInt64:
		return castAny[int64](stored)
	default:
		return castAny[uint64](stored)
	}
}

func castAny[To number](stored any) []To {
	if same, ok := stored.([]To); ok {
		return same
	}
	switch v := stored.(type) {
	case []int8:
		return castSlice[int8, To](v)
	case []uint8:
		return castSlice[uint8, To](v)
	case []int16:
		return castSlice[int16, To](v)
	case []uint16:
		return castSlice[uint16, To](v)
	case []int32:
		return castSlice[int32, To](v)
	case []uint32:
		return castSlice[uint32, To](v)
	case []int64:
		return castSlice[int64, To](v)
	case []uint64:
		return castSlice[uint64, To](v)
	case []float32:
		return castSlice[float32, To](v)
	case []float64:
		return castSlice[float64, To](v)
	}
	return nil
}

func castSlice[From, To number](vals []From) []To {
	out := make([]To, len(vals))
	for i, v := range vals {
		out[i] = To(v)
	}
	return out
}
