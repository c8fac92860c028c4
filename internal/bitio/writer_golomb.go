// Package bitio implements the MSB-first bit writer and reader used by the
// entropy coder, together with signed and unsigned Exp-Golomb codes.
package bitio

import "math/bits"

// Bitstream is a finished, MSB-first bit sequence. Bits is the exact number
// of meaningful bits; the final byte of Data is zero-padded.
type Bitstream struct {
	Data []byte
	Bits int
}

// GolombWriter accumulates bits MSB-first in a 64-bit register and flushes
// whole bytes into its output buffer.
type GolombWriter struct {
	acc  uint64 // pending bits, right-aligned
	used int    // number of pending bits in acc
	buf  []byte
	n    int // total bits written
}

// NewGolombWriter creates a GolombWriter with an initial buffer
// pre-allocated for expectedSize bytes.
func NewGolombWriter(expectedSize int) *GolombWriter {
	if expectedSize < 64 {
		expectedSize = 64
	}
	return &GolombWriter{buf: make([]byte, 0, expectedSize)}
}

// WriteBits writes the nBits (0..56) low bits of v, most significant first.
func (w *GolombWriter) WriteBits(v uint64, nBits int) {
	if nBits <= 0 {
		return
	}
	if w.used+nBits > 64 {
		w.flushBytes()
	}
	w.acc = w.acc<<uint(nBits) | (v & (1<<uint(nBits) - 1))
	w.used += nBits
	w.n += nBits
	if w.used >= 32 {
		w.flushBytes()
	}
}

// flushBytes moves every complete byte of the accumulator to buf.
func (w *GolombWriter) flushBytes() {
	for w.used >= 8 {
		w.used -= 8
		w.buf = append(w.buf, byte(w.acc>>uint(w.used)))
	}
	w.acc &= 1<<uint(w.used) - 1
}

// writeZeros writes n zero bits.
func (w *GolombWriter) writeZeros(n int) {
	for n > 32 {
		w.WriteBits(0, 32)
		n -= 32
	}
	w.WriteBits(0, n)
}

// WriteUE writes v as an unsigned Exp-Golomb code: m leading zeros followed
// by the (m+1)-bit binary form of v+1, where m = floor(log2(v+1)).
func (w *GolombWriter) WriteUE(v uint64) {
	x := v + 1
	m := bits.Len64(x) - 1
	w.writeZeros(m)
	if m+1 > 32 {
		w.WriteBits(x>>32, m+1-32)
		w.WriteBits(x&0xffffffff, 32)
		return
	}
	w.WriteBits(x, m+1)
}

// WriteSE writes v as a signed Exp-Golomb code. Positive values map to odd
// code numbers (2v-1) and non-positive values to even ones (-2v).
func (w *GolombWriter) WriteSE(v int) {
	w.WriteUE(SignedToCode(v))
}

// BitsWritten returns the number of bits written so far.
func (w *GolombWriter) BitsWritten() int {
	return w.n
}

// Finish pads the last partial byte with zeros and returns the stream. The
// writer must be Reset before it is reused.
func (w *GolombWriter) Finish() Bitstream {
	w.flushBytes()
	if w.used > 0 {
		w.buf = append(w.buf, byte(w.acc<<uint(8-w.used)))
		w.acc = 0
		w.used = 0
	}
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	return Bitstream{Data: out, Bits: w.n}
}

// SignedToCode maps a signed value to its Exp-Golomb code number.
func SignedToCode(v int) uint64 {
	if v > 0 {
		return uint64(v)*2 - 1
	}
	return uint64(-v) * 2
}

// CodeToSigned is the inverse of SignedToCode.
func CodeToSigned(k uint64) int {
	if k&1 == 1 {
		return int((k + 1) / 2)
	}
	return -int(k / 2)
}

// SELen returns the length in bits of the signed Exp-Golomb code for v:
// 1 for zero, 3 + 2*floor(log2|v|) otherwise.
func SELen(v int) int {
	if v == 0 {
		return 1
	}
	if v < 0 {
		v = -v
	}
	return 3 + 2*(bits.Len64(uint64(v))-1)
}
