package lossy

import (
	"github.com/deepteams/blockvid/internal/dsp"
	"github.com/deepteams/blockvid/internal/entropy"
	"github.com/deepteams/blockvid/internal/frame"
)

// ResidualCoder runs the residual pipeline of a block: approximation,
// forward transform, quantization, scan and run-length tokens on the way in,
// and dequantization plus inverse transform on the way back.
type ResidualCoder struct {
	quant   *dsp.Quantizer
	approxN int
}

// NewResidualCoder returns a ResidualCoder for shape. approxN > 0 enables
// residual approximation with that exponent.
func NewResidualCoder(shape dsp.Shape, approxN int) *ResidualCoder {
	return &ResidualCoder{quant: dsp.NewQuantizer(shape), approxN: approxN}
}

// Quantize turns the residual block res into quantization levels in place.
func (c *ResidualCoder) Quantize(res []int32, size, qp int) error {
	dsp.Approximate(res, c.approxN)
	dsp.ForwardDCT(res, res, size)
	return c.quant.Quantize(res, res, qp)
}

// Tokens appends the run-length tokens of levels to dst and returns the
// extended slice with the bit cost of the appended tokens. seq is scratch
// of at least size*size values.
func (c *ResidualCoder) Tokens(dst, levels, seq []int32, size int) ([]int32, int) {
	n := size * size
	entropy.Scan(seq[:n], levels, size)
	start := len(dst)
	dst = entropy.AppendRunLength(dst, seq[:n])
	return dst, entropy.Cost(dst[start:])
}

// Apply dequantizes levels in place, inverse transforms them and writes
// the clamped sum with pred into the block at (row, col) of dst. tmp holds
// at least size*size values.
func (c *ResidualCoder) Apply(dst *frame.Plane, row, col, size int, pred, levels []int32, qp int, tmp []float64) error {
	n := size * size
	if err := c.quant.Dequantize(levels[:n], levels[:n], qp); err != nil {
		return err
	}
	dsp.InverseDCT(levels, tmp, size)
	dsp.Reconstruct(dst.Pix, dst.Stride, row, col, size, pred[:n], tmp[:n])
	return nil
}
