// Package save encodes the placed-and-routed schematic into the target's
// binary save format: a little-endian payload wrapped in a versioned,
// snappy-compressed container.
package save

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
)

// Encoding overflow errors. Any of them aborts the compile before a single
// byte is written out.
var (
	ErrStringTooLong = errors.New("string exceeds 65535 bytes")
	ErrValueRange    = errors.New("value outside its encoded range")
)

// writer accumulates little-endian payload bytes, latching the first
// error so call sites stay unconditional.
type writer struct {
	buf bytes.Buffer
	err error
}

func (w *writer) U8(v uint8) {
	if w.err != nil {
		return
	}
	w.buf.WriteByte(v)
}

func (w *writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

func (w *writer) U16(v uint16) {
	w.U8(byte(v))
	w.U8(byte(v >> 8))
}

func (w *writer) U32(v uint32) {
	w.U16(uint16(v))
	w.U16(uint16(v >> 16))
}

func (w *writer) U64(v uint64) {
	w.U32(uint32(v))
	w.U32(uint32(v >> 32))
}

func (w *writer) I16(v int) {
	if w.err != nil {
		return
	}
	if v < math.MinInt16 || v > math.MaxInt16 {
		w.err = fmt.Errorf("%w: %d does not fit int16", ErrValueRange, v)
		return
	}
	w.U16(uint16(int16(v)))
}

// Point writes a grid coordinate as signed 16-bit x then y.
func (w *writer) Point(p lib.Point) {
	w.I16(p.X)
	w.I16(p.Y)
}

// Str writes a 16-bit length-prefixed UTF-8 string.
func (w *writer) Str(s string) {
	if w.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		w.err = fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
		return
	}
	w.U16(uint16(len(s)))
	w.buf.WriteString(s)
}

// Blob writes a 16-bit length-prefixed byte block.
func (w *writer) Blob(b []byte) {
	if w.err != nil {
		return
	}
	if len(b) > math.MaxUint16 {
		w.err = fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(b))
		return
	}
	w.U16(uint16(len(b)))
	w.buf.Write(b)
}
