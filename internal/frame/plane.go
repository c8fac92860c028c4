// Package frame holds the picture buffers of the codec: padded luma planes,
// the read-only reference frames derived from them and the bounded
// reference set shared by encoder and decoder.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/deepteams/blockvid/internal/dsp"
)

// PadValue fills the samples added to round a plane up to whole blocks.
const PadValue = 128

// ErrSize reports samples that do not match the declared dimensions.
var ErrSize = errors.New("frame: sample buffer does not match dimensions")

// Plane is an 8-bit luma plane padded so both dimensions are multiples of
// the block size. Width and Height are the visible dimensions.
type Plane struct {
	Width, Height       int
	PadWidth, PadHeight int
	Stride              int
	Pix                 []uint8
}

func padTo(v, m int) int {
	return (v + m - 1) / m * m
}

// NewPlane returns a plane of the given visible size filled with PadValue.
func NewPlane(width, height, blockSize int) *Plane {
	pw, ph := padTo(width, blockSize), padTo(height, blockSize)
	p := &Plane{
		Width: width, Height: height,
		PadWidth: pw, PadHeight: ph,
		Stride: pw,
		Pix:    make([]uint8, pw*ph),
	}
	for i := range p.Pix {
		p.Pix[i] = PadValue
	}
	return p
}

// FromSamples copies a width*height plane with the given stride into a new
// padded Plane.
func FromSamples(y []uint8, width, height, stride, blockSize int) (*Plane, error) {
	if width <= 0 || height <= 0 || stride < width {
		return nil, fmt.Errorf("%w: %dx%d stride %d", ErrSize, width, height, stride)
	}
	if len(y) < (height-1)*stride+width {
		return nil, fmt.Errorf("%w: have %d samples, need %d", ErrSize, len(y), (height-1)*stride+width)
	}
	p := NewPlane(width, height, blockSize)
	for r := 0; r < height; r++ {
		copy(p.Pix[r*p.Stride:r*p.Stride+width], y[r*stride:r*stride+width])
	}
	return p, nil
}

// Clone returns a deep copy of p.
func (p *Plane) Clone() *Plane {
	c := *p
	c.Pix = append([]uint8(nil), p.Pix...)
	return &c
}

// Visible returns the visible width*height samples, tightly packed.
func (p *Plane) Visible() []uint8 {
	out := make([]uint8, p.Width*p.Height)
	for r := 0; r < p.Height; r++ {
		copy(out[r*p.Width:(r+1)*p.Width], p.Pix[r*p.Stride:r*p.Stride+p.Width])
	}
	return out
}

// Load copies the size*size block at (row, col) into dst.
func (p *Plane) Load(dst []int32, row, col, size int) {
	dsp.LoadBlock(dst, p.Pix, p.Stride, row, col, size)
}

// Contains reports whether the size*size block at (row, col) lies inside
// the padded plane.
func (p *Plane) Contains(row, col, size int) bool {
	return row >= 0 && col >= 0 && row+size <= p.PadHeight && col+size <= p.PadWidth
}

// Equal reports whether two planes have the same geometry and samples.
func (p *Plane) Equal(q *Plane) bool {
	if p.Width != q.Width || p.Height != q.Height || p.PadWidth != q.PadWidth || p.PadHeight != q.PadHeight {
		return false
	}
	for r := 0; r < p.PadHeight; r++ {
		a := p.Pix[r*p.Stride : r*p.Stride+p.PadWidth]
		b := q.Pix[r*q.Stride : r*q.Stride+q.PadWidth]
		if string(a) != string(b) {
			return false
		}
	}
	return true
}

// Digest returns the BLAKE2b-256 hash of the padded samples and geometry.
func (p *Plane) Digest() [32]byte {
	h, _ := blake2b.New256(nil)
	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(p.Width))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(p.Height))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(p.PadWidth))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(p.PadHeight))
	h.Write(hdr[:])
	for r := 0; r < p.PadHeight; r++ {
		h.Write(p.Pix[r*p.Stride : r*p.Stride+p.PadWidth])
	}
	var d [32]byte
	h.Sum(d[:0])
	return d
}

// PSNR returns the peak signal-to-noise ratio of the visible region of p
// against ref.
func PSNR(p, ref *Plane) float64 {
	sse := dsp.SSE(p.Pix, ref.Pix, p.Width, p.Height, p.Stride, ref.Stride)
	return dsp.PSNRFromSSE(sse, p.Width*p.Height)
}

// SSIM returns the mean structural similarity of the visible region of p
// against ref.
func SSIM(p, ref *Plane) float64 {
	return dsp.SSIM(p.Pix, ref.Pix, p.Width, p.Height, p.Stride, ref.Stride)
}
