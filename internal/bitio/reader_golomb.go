package bitio

import "errors"

// Errors returned by GolombReader.
var (
	ErrTruncated = errors.New("bitio: read past end of stream")
	ErrOverflow  = errors.New("bitio: exp-golomb prefix too long")
)

// maxPrefix bounds the leading-zero run of a code; longer prefixes cannot
// come from GolombWriter for values that fit in an int.
const maxPrefix = 62

// GolombReader reads an MSB-first Bitstream produced by GolombWriter.
type GolombReader struct {
	data []byte
	bits int // total meaningful bits
	pos  int // next bit index
}

// NewGolombReader creates a reader over s. Bits beyond s.Bits are never read.
func NewGolombReader(s Bitstream) *GolombReader {
	n := s.Bits
	if n > len(s.Data)*8 {
		n = len(s.Data) * 8
	}
	return &GolombReader{data: s.Data, bits: n}
}

// Remaining returns the number of unread bits.
func (r *GolombReader) Remaining() int {
	return r.bits - r.pos
}

// ReadBit reads one bit.
func (r *GolombReader) ReadBit() (uint64, error) {
	if r.pos >= r.bits {
		return 0, ErrTruncated
	}
	b := r.data[r.pos>>3] >> uint(7-r.pos&7) & 1
	r.pos++
	return uint64(b), nil
}

// ReadBits reads nBits (0..64) bits, most significant first.
func (r *GolombReader) ReadBits(nBits int) (uint64, error) {
	if nBits > r.Remaining() {
		r.pos = r.bits
		return 0, ErrTruncated
	}
	var v uint64
	for i := 0; i < nBits; i++ {
		b, _ := r.ReadBit()
		v = v<<1 | b
	}
	return v, nil
}

// ReadUE reads an unsigned Exp-Golomb code.
func (r *GolombReader) ReadUE() (uint64, error) {
	m := 0
	for {
		b, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if b == 1 {
			break
		}
		m++
		if m > maxPrefix {
			return 0, ErrOverflow
		}
	}
	rest, err := r.ReadBits(m)
	if err != nil {
		return 0, err
	}
	return (uint64(1)<<uint(m) | rest) - 1, nil
}

// ReadSE reads a signed Exp-Golomb code.
func (r *GolombReader) ReadSE() (int, error) {
	k, err := r.ReadUE()
	if err != nil {
		return 0, err
	}
	return CodeToSigned(k), nil
}
