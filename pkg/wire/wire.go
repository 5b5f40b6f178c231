// Package wire implements the binary field encoding shared by every packet.
//
// All multi-byte values are little-endian. Strings carry a 2-byte length
// prefix counting UTF-8 bytes; a zero length is the encoding for "absent".
// Blobs carry a 4-byte length prefix. There is no embedded schema or version
// information: a composite packet serializes its fields in declared order and
// the decoder must consume exactly that sequence.
package wire

import (
	"encoding/binary"
	"math"

	"github.com/ambergale/coopsync/pkg/errors"
)

// MaxStringBytes is the largest byte length the string prefix can express.
const MaxStringBytes = math.MaxUint16

type Vec2 struct {
	X float32
	Y float32
}

type Vec3 struct {
	X float32
	Y float32
	Z float32
}

// Writer appends encoded fields to a growing buffer. The zero value is ready
// to use.
type Writer struct {
	buf []byte
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) PutBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) PutUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) PutUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) PutInt32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) PutFloat32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

// PutString writes a 2-byte length prefix followed by the raw UTF-8 bytes.
// The empty string encodes as a bare zero prefix.
func (w *Writer) PutString(fieldName, v string) error {
	if len(v) > MaxStringBytes {
		return &errors.StringOverflow{
			FieldName: fieldName,
			Length:    len(v),
			Maximum:   MaxStringBytes,
		}
	}
	w.PutUint16(uint16(len(v)))
	w.buf = append(w.buf, v...)
	return nil
}

func (w *Writer) PutVec2(v Vec2) {
	w.PutFloat32(v.X)
	w.PutFloat32(v.Y)
}

func (w *Writer) PutVec3(v Vec3) {
	w.PutFloat32(v.X)
	w.PutFloat32(v.Y)
	w.PutFloat32(v.Z)
}

func (w *Writer) PutBytes(v []byte) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(v)))
	w.buf = append(w.buf, v...)
}

// Reader consumes encoded fields from a buffer in the order they were
// written. Every read reports an Underflow error naming the field when the
// remaining bytes cannot satisfy it; the reader never yields partial values.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports how many undecoded bytes are left.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *Reader) need(fieldName string, n int) error {
	if r.Remaining() < n {
		return &errors.Underflow{
			FieldName:   fieldName,
			MsgSize:     r.Remaining(),
			MinimumSize: n,
		}
	}
	return nil
}

func (r *Reader) Bool(fieldName string) (bool, error) {
	if err := r.need(fieldName, 1); err != nil {
		return false, err
	}
	v := r.buf[r.off] != 0
	r.off++
	return v, nil
}

func (r *Reader) Uint8(fieldName string) (uint8, error) {
	if err := r.need(fieldName, 1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *Reader) Uint16(fieldName string) (uint16, error) {
	if err := r.need(fieldName, 2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off : r.off+2])
	r.off += 2
	return v, nil
}

func (r *Reader) Int32(fieldName string) (int32, error) {
	if err := r.need(fieldName, 4); err != nil {
		return 0, err
	}
	v := int32(binary.LittleEndian.Uint32(r.buf[r.off : r.off+4]))
	r.off += 4
	return v, nil
}

func (r *Reader) Float32(fieldName string) (float32, error) {
	if err := r.need(fieldName, 4); err != nil {
		return 0, err
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(r.buf[r.off : r.off+4]))
	r.off += 4
	return v, nil
}

func (r *Reader) String(fieldName string) (string, error) {
	n, err := r.Uint16(fieldName)
	if err != nil {
		return "", err
	}
	if err := r.need(fieldName, int(n)); err != nil {
		return "", err
	}
	v := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	return v, nil
}

func (r *Reader) Vec2(fieldName string) (Vec2, error) {
	x, err := r.Float32(fieldName)
	if err != nil {
		return Vec2{}, err
	}
	y, err := r.Float32(fieldName)
	if err != nil {
		return Vec2{}, err
	}
	return Vec2{X: x, Y: y}, nil
}

func (r *Reader) Vec3(fieldName string) (Vec3, error) {
	x, err := r.Float32(fieldName)
	if err != nil {
		return Vec3{}, err
	}
	y, err := r.Float32(fieldName)
	if err != nil {
		return Vec3{}, err
	}
	z, err := r.Float32(fieldName)
	if err != nil {
		return Vec3{}, err
	}
	return Vec3{X: x, Y: y, Z: z}, nil
}

func (r *Reader) Bytes(fieldName string) ([]byte, error) {
	if err := r.need(fieldName, 4); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	if err := r.need(fieldName, int(n)); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, r.buf[r.off:r.off+int(n)])
	r.off += int(n)
	return v, nil
}
