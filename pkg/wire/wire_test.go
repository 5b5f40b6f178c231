package wire

import (
	"math"
	"strings"
	"testing"

	cerr "github.com/ambergale/coopsync/pkg/errors"
)

func TestRoundTripPrimitives(t *testing.T) {
	t.Run("bool", func(t *testing.T) {
		for _, v := range []bool{true, false} {
			w := &Writer{}
			w.PutBool(v)
			got, err := NewReader(w.Bytes()).Bool("b")
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got != v {
				t.Fatalf("round trip mismatch: wrote %v, read %v", v, got)
			}
		}
	})

	t.Run("uint8", func(t *testing.T) {
		for _, v := range []uint8{0, 1, 0x7f, 0xff} {
			w := &Writer{}
			w.PutUint8(v)
			got, err := NewReader(w.Bytes()).Uint8("u8")
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got != v {
				t.Fatalf("round trip mismatch: wrote %d, read %d", v, got)
			}
		}
	})

	t.Run("uint16", func(t *testing.T) {
		for _, v := range []uint16{0, 1, 0x1234, math.MaxUint16} {
			w := &Writer{}
			w.PutUint16(v)
			got, err := NewReader(w.Bytes()).Uint16("u16")
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got != v {
				t.Fatalf("round trip mismatch: wrote %d, read %d", v, got)
			}
		}
	})

	t.Run("int32", func(t *testing.T) {
		for _, v := range []int32{0, -1, 1, math.MinInt32, math.MaxInt32} {
			w := &Writer{}
			w.PutInt32(v)
			got, err := NewReader(w.Bytes()).Int32("i32")
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got != v {
				t.Fatalf("round trip mismatch: wrote %d, read %d", v, got)
			}
		}
	})

	t.Run("float32", func(t *testing.T) {
		for _, v := range []float32{0, -0, 1.5, -123.25, math.MaxFloat32, math.SmallestNonzeroFloat32} {
			w := &Writer{}
			w.PutFloat32(v)
			got, err := NewReader(w.Bytes()).Float32("f32")
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got != v {
				t.Fatalf("round trip mismatch: wrote %v, read %v", v, got)
			}
		}
	})

	t.Run("float32 NaN survives the wire", func(t *testing.T) {
		w := &Writer{}
		w.PutFloat32(float32(math.NaN()))
		got, err := NewReader(w.Bytes()).Float32("f32")
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if !math.IsNaN(float64(got)) {
			t.Fatalf("expected NaN, got %v", got)
		}
	})
}

func TestRoundTripStrings(t *testing.T) {
	t.Run("values", func(t *testing.T) {
		for _, v := range []string{"", "a", "SU_C04", "日本語テキスト", strings.Repeat("x", MaxStringBytes)} {
			w := &Writer{}
			if err := w.PutString("s", v); err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			got, err := NewReader(w.Bytes()).String("s")
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got != v {
				t.Fatalf("round trip mismatch for %q", v)
			}
		}
	})

	t.Run("empty string is a bare zero prefix", func(t *testing.T) {
		w := &Writer{}
		if err := w.PutString("s", ""); err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		if len(w.Bytes()) != 2 {
			t.Fatalf("expected 2 bytes, got %d", len(w.Bytes()))
		}
	})

	t.Run("oversized string is an encoder error", func(t *testing.T) {
		w := &Writer{}
		err := w.PutString("s", strings.Repeat("x", MaxStringBytes+1))
		if err == nil {
			t.Fatalf("expected encode error for oversized string")
		}
		if _, ok := err.(*cerr.StringOverflow); !ok {
			t.Fatalf("expected StringOverflow, got %T", err)
		}
	})
}

func TestRoundTripVectors(t *testing.T) {
	w := &Writer{}
	v2 := Vec2{X: 1.5, Y: -2.25}
	v3 := Vec3{X: -0.5, Y: 100, Z: 3.75}
	w.PutVec2(v2)
	w.PutVec3(v3)

	r := NewReader(w.Bytes())
	got2, err := r.Vec2("v2")
	if err != nil {
		t.Fatalf("vec2 decode failed: %v", err)
	}
	if got2 != v2 {
		t.Fatalf("vec2 mismatch: %+v", got2)
	}
	got3, err := r.Vec3("v3")
	if err != nil {
		t.Fatalf("vec3 decode failed: %v", err)
	}
	if got3 != v3 {
		t.Fatalf("vec3 mismatch: %+v", got3)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected reader drained, %d bytes left", r.Remaining())
	}
}

func TestRoundTripBytes(t *testing.T) {
	t.Run("zero length blob", func(t *testing.T) {
		w := &Writer{}
		w.PutBytes(nil)
		got, err := NewReader(w.Bytes()).Bytes("blob")
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty blob, got %d bytes", len(got))
		}
	})

	t.Run("payload", func(t *testing.T) {
		payload := []byte{0x00, 0xff, 0x10, 0x20}
		w := &Writer{}
		w.PutBytes(payload)
		got, err := NewReader(w.Bytes()).Bytes("blob")
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if string(got) != string(payload) {
			t.Fatalf("blob mismatch: %v", got)
		}
	})

	t.Run("decoded blob is a copy", func(t *testing.T) {
		w := &Writer{}
		w.PutBytes([]byte{1, 2, 3})
		buf := w.Bytes()
		got, err := NewReader(buf).Bytes("blob")
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		buf[4] = 99
		if got[0] != 1 {
			t.Fatalf("decoded blob aliases the wire buffer")
		}
	})
}

func TestUnderflow(t *testing.T) {
	cases := []struct {
		name string
		read func(r *Reader) error
		buf  []byte
	}{
		{"bool", func(r *Reader) error { _, err := r.Bool("f"); return err }, nil},
		{"uint16", func(r *Reader) error { _, err := r.Uint16("f"); return err }, []byte{1}},
		{"int32", func(r *Reader) error { _, err := r.Int32("f"); return err }, []byte{1, 2, 3}},
		{"float32", func(r *Reader) error { _, err := r.Float32("f"); return err }, []byte{1, 2}},
		{"string prefix", func(r *Reader) error { _, err := r.String("f"); return err }, []byte{5}},
		{"string body", func(r *Reader) error { _, err := r.String("f"); return err }, []byte{5, 0, 'a', 'b'}},
		{"vec3", func(r *Reader) error { _, err := r.Vec3("f"); return err }, make([]byte, 11)},
		{"blob prefix", func(r *Reader) error { _, err := r.Bytes("f"); return err }, []byte{1, 0, 0}},
		{"blob body", func(r *Reader) error { _, err := r.Bytes("f"); return err }, []byte{4, 0, 0, 0, 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.read(NewReader(tc.buf))
			if err == nil {
				t.Fatalf("expected underflow error")
			}
			if _, ok := err.(*cerr.Underflow); !ok {
				t.Fatalf("expected Underflow, got %T: %v", err, err)
			}
		})
	}
}
