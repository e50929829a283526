package matfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"time"
)

// maxFieldName is the longest struct field name format 5 accepts, excluding the NUL.
const maxFieldName = 31

var order = binary.LittleEndian

// Option configures an Encoder.
type Option func(*Encoder)

// WithCompression wraps each variable in a zlib-compressed miCOMPRESSED element.
func WithCompression() Option {
	return func(e *Encoder) { e.compress = true }
}

// WithClock sets the time source used for the header description.
func WithClock(now func() time.Time) Option {
	return func(e *Encoder) { e.now = now }
}

// Encoder writes MAT-files.
type Encoder struct {
	w        io.Writer
	compress bool
	now      func() time.Time
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	e := &Encoder{w: w, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode writes the file header followed by vars.
func (e *Encoder) Encode(vars ...Variable) error {
	if _, err := e.w.Write(e.header()); err != nil {
		return err
	}
	for _, v := range vars {
		if v.Name == "" {
			return fmt.Errorf("variable has no name")
		}
		elem, err := matrixElement(v.Name, v.Value, v.Global)
		if err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
		if e.compress {
			if elem, err = compressElement(elem); err != nil {
				return fmt.Errorf("variable %q: %w", v.Name, err)
			}
		}
		if _, err := e.w.Write(elem); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes vars to a new MAT-file at path.
func WriteFile(path string, vars []Variable, opts ...Option) error {
	var buf bytes.Buffer
	if err := NewEncoder(&buf, opts...).Encode(vars...); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func (e *Encoder) header() []byte {
	hdr := make([]byte, headerSize)
	platform := "posix"
	if runtime.GOOS == "windows" {
		platform = "nt"
	}
	desc := fmt.Sprintf("MATLAB 5.0 MAT-file Platform: %s, Created on: %s",
		platform, e.now().Format(time.ANSIC))
	copy(hdr[:descriptionSize], desc)
	// bytes 116..123: subsystem data offset, left zero
	order.PutUint16(hdr[124:], fileVersion)
	copy(hdr[126:], "IM")
	return hdr
}

func compressElement(elem []byte) ([]byte, error) {
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	if _, err := zw.Write(elem); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	out := make([]byte, 8, 8+z.Len())
	order.PutUint32(out[0:], miCOMPRESSED)
	order.PutUint32(out[4:], uint32(z.Len()))
	return append(out, z.Bytes()...), nil
}

// matrixElement encodes a full miMATRIX element including its tag.
func matrixElement(name string, a Array, global bool) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil array")
	}
	var body bytes.Buffer

	var flags uint32
	if global {
		flags |= flagGlobal
	}
	if n, ok := a.(*Numeric); ok && n.Logical {
		flags |= flagLogical
	}
	af := make([]byte, 16)
	order.PutUint32(af[0:], miUINT32)
	order.PutUint32(af[4:], 8)
	order.PutUint32(af[8:], uint32(a.Class())|flags<<8)
	// nzmax stays zero for non-sparse arrays
	body.Write(af)

	dims := a.Shape()
	dimBytes := make([]byte, 4*len(dims))
	for i, d := range dims {
		order.PutUint32(dimBytes[4*i:], uint32(int32(d)))
	}
	writeElement(&body, miINT32, dimBytes)
	writeElement(&body, miINT8, []byte(name))

	switch v := a.(type) {
	case *Numeric:
		data, mtype, err := numericBytes(v)
		if err != nil {
			return nil, err
		}
		writeElement(&body, mtype, data)
	case *Char:
		units := utf16Units(v.Text)
		data := make([]byte, 2*len(units))
		for i, u := range units {
			order.PutUint16(data[2*i:], u)
		}
		writeElement(&body, miUINT16, data)
	case *Cell:
		if len(v.Elems) != numel(v.Dims) {
			return nil, fmt.Errorf("cell has %d elements for dims %v", len(v.Elems), v.Dims)
		}
		for i, el := range v.Elems {
			sub, err := matrixElement("", el, false)
			if err != nil {
				return nil, fmt.Errorf("cell element %d: %w", i, err)
			}
			body.Write(sub)
		}
	case *Struct:
		if err := writeStruct(&body, v); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported array type %T", a)
	}

	out := make([]byte, 8, 8+body.Len())
	order.PutUint32(out[0:], miMATRIX)
	order.PutUint32(out[4:], uint32(body.Len()))
	return append(out, body.Bytes()...), nil
}

func writeStruct(body *bytes.Buffer, s *Struct) error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("struct has no fields")
	}
	if len(s.Values) != numel(s.Dims) {
		return fmt.Errorf("struct has %d elements for dims %v", len(s.Values), s.Dims)
	}
	length := 0
	for _, f := range s.Fields {
		if len(f) > length {
			length = len(f)
		}
	}
	length++
	if length-1 > maxFieldName {
		return fmt.Errorf("field name longer than %d characters", maxFieldName)
	}
	lenBytes := make([]byte, 4)
	order.PutUint32(lenBytes, uint32(length))
	writeElement(body, miINT32, lenBytes)

	names := make([]byte, length*len(s.Fields))
	for i, f := range s.Fields {
		copy(names[i*length:], f)
	}
	writeElement(body, miINT8, names)

	for k, vals := range s.Values {
		if len(vals) != len(s.Fields) {
			return fmt.Errorf("struct element %d has %d values for %d fields", k, len(vals), len(s.Fields))
		}
		for f, val := range vals {
			sub, err := matrixElement("", val, false)
			if err != nil {
				return fmt.Errorf("struct element %d field %s: %w", k, s.Fields[f], err)
			}
			body.Write(sub)
		}
	}
	return nil
}

// writeElement writes a data element, using the small form when it fits.
func writeElement(w *bytes.Buffer, mtype uint32, data []byte) {
	n := len(data)
	if n <= 4 {
		tag := make([]byte, 8)
		order.PutUint32(tag, uint32(n)<<16|mtype)
		copy(tag[4:], data)
		w.Write(tag)
		return
	}
	tag := make([]byte, 8)
	order.PutUint32(tag[0:], mtype)
	order.PutUint32(tag[4:], uint32(n))
	w.Write(tag)
	w.Write(data)
	if pad := n % 8; pad != 0 {
		w.Write(make([]byte, 8-pad))
	}
}

func numericBytes(n *Numeric) ([]byte, uint32, error) {
	count := numel(n.Dims)
	var (
		buf   []byte
		mtype uint32
		got   int
	)
	switch d := n.Data.(type) {
	case []uint8:
		if n.Type != ClassUint8 {
			break
		}
		buf, mtype, got = append([]byte(nil), d...), miUINT8, len(d)
	case []int8:
		if n.Type != ClassInt8 {
			break
		}
		buf = make([]byte, len(d))
		for i, v := range d {
			buf[i] = byte(v)
		}
		mtype, got = miINT8, len(d)
	case []uint16:
		if n.Type != ClassUint16 {
			break
		}
		buf = make([]byte, 2*len(d))
		for i, v := range d {
			order.PutUint16(buf[2*i:], v)
		}
		mtype, got = miUINT16, len(d)
	case []int16:
		if n.Type != ClassInt16 {
			break
		}
		buf = make([]byte, 2*len(d))
		for i, v := range d {
			order.PutUint16(buf[2*i:], uint16(v))
		}
		mtype, got = miINT16, len(d)
	case []uint32:
		if n.Type != ClassUint32 {
			break
		}
		buf = make([]byte, 4*len(d))
		for i, v := range d {
			order.PutUint32(buf[4*i:], v)
		}
		mtype, got = miUINT32, len(d)
	case []int32:
		if n.Type != ClassInt32 {
			break
		}
		buf = make([]byte, 4*len(d))
		for i, v := range d {
			order.PutUint32(buf[4*i:], uint32(v))
		}
		mtype, got = miINT32, len(d)
	case []uint64:
		if n.Type != ClassUint64 {
			break
		}
		buf = make([]byte, 8*len(d))
		for i, v := range d {
			order.PutUint64(buf[8*i:], v)
		}
		mtype, got = miUINT64, len(d)
	case []int64:
		if n.Type != ClassInt64 {
			break
		}
		buf = make([]byte, 8*len(d))
		for i, v := range d {
			order.PutUint64(buf[8*i:], uint64(v))
		}
		mtype, got = miINT64, len(d)
	case []float32:
		if n.Type != ClassSingle {
			break
		}
		buf = make([]byte, 4*len(d))
		for i, v := range d {
			order.PutUint32(buf[4*i:], math.Float32bits(v))
		}
		mtype, got = miSINGLE, len(d)
	case []float64:
		if n.Type != ClassDouble {
			break
		}
		buf = make([]byte, 8*len(d))
		for i, v := range d {
			order.PutUint64(buf[8*i:], math.Float64bits(v))
		}
		mtype, got = miDOUBLE, len(d)
	}
	if mtype == 0 {
		return nil, 0, fmt.Errorf("data %T does not match class %s", n.Data, n.Type)
	}
	if got != count {
		return nil, 0, fmt.Errorf("%d elements for dims %v", got, n.Dims)
	}
	return buf, mtype, nil
}

func utf16Units(s string) []uint16 {
	units := make([]uint16, 0, len(s))
	for _, r := range s {
		if r > 0xFFFF {
			r = 0xFFFD
		}
		units = append(units, uint16(r))
	}
	return units
}
