package dsp

import (
	"fmt"
	"math"
	"sync"
)

// MaxQP is the largest quantization parameter whose matrix entries
// (up to 2^(qp+2)) still fit an int32.
const MaxQP = 28

type quantKey struct {
	size, qp int
}

var quantCache sync.Map // quantKey -> []int32

// QuantMatrix returns the size*size quantization matrix for qp:
// 2^qp above the main antidiagonal (x+y < size-1), 2^(qp+1) on it and
// 2^(qp+2) below it. The returned slice is shared and must not be modified.
func QuantMatrix(size, qp int) []int32 {
	k := quantKey{size, qp}
	if v, ok := quantCache.Load(k); ok {
		return v.([]int32)
	}
	m := make([]int32, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			e := qp
			switch d := x + y; {
			case d == size-1:
				e++
			case d > size-1:
				e += 2
			}
			m[y*size+x] = 1 << e
		}
	}
	v, _ := quantCache.LoadOrStore(k, m)
	return v.([]int32)
}

// Quantizer maps transform coefficients to quantization levels and back.
// Blocks of the sub-block size use qp-1, floored at 0.
type Quantizer struct {
	shape Shape
}

// NewQuantizer returns a Quantizer for the given block shape.
func NewQuantizer(shape Shape) *Quantizer {
	return &Quantizer{shape: shape}
}

// Shape returns the block shape the quantizer accepts.
func (q *Quantizer) Shape() Shape { return q.shape }

// matrix selects the matrix for a block of n samples.
func (q *Quantizer) matrix(n, qp int) ([]int32, error) {
	side := sideOf(n)
	sub, err := q.shape.IsSub(side)
	if err != nil {
		return nil, err
	}
	if qp < 0 || qp > MaxQP {
		return nil, fmt.Errorf("dsp: qp %d out of range [0, %d]", qp, MaxQP)
	}
	if sub {
		qp = max(qp-1, 0)
	}
	return QuantMatrix(side, qp), nil
}

// Quantize writes round(coeffs[i] / Q[i]) (half to even) into levels.
// levels and coeffs may alias.
func (q *Quantizer) Quantize(levels, coeffs []int32, qp int) error {
	m, err := q.matrix(len(coeffs), qp)
	if err != nil {
		return err
	}
	_ = levels[len(coeffs)-1]
	for i, c := range coeffs {
		levels[i] = int32(math.RoundToEven(float64(c) / float64(m[i])))
	}
	return nil
}

// Dequantize writes levels[i] * Q[i] into coeffs. coeffs and levels may
// alias.
func (q *Quantizer) Dequantize(coeffs, levels []int32, qp int) error {
	m, err := q.matrix(len(levels), qp)
	if err != nil {
		return err
	}
	_ = coeffs[len(levels)-1]
	for i, l := range levels {
		coeffs[i] = l * m[i]
	}
	return nil
}

// Approximate coarsens every residual value toward zero to a multiple of
// 2^n, keeping its sign. n <= 0 leaves the values unchanged.
func Approximate(residual []int32, n int) {
	if n <= 0 {
		return
	}
	for i, r := range residual {
		if r < 0 {
			residual[i] = -((-r >> n) << n)
		} else {
			residual[i] = (r >> n) << n
		}
	}
}
