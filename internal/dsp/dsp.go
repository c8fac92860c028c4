// Package dsp provides the sample-level routines of the codec: the
// orthonormal block transform, quantization, residual approximation, intra
// predictors, block distortion metrics and the half-pixel interpolation grid.
//
// Blocks are square, row-major []int32 slices of size*size samples.
package dsp

import (
	"errors"
	"fmt"
)

// ErrInvalidBlockShape reports a block whose side matches neither the
// configured block size nor the sub-block size. It indicates a caller bug.
var ErrInvalidBlockShape = errors.New("dsp: invalid block shape")

// Shape describes the two block sizes a codec instance works with.
type Shape struct {
	BlockSize    int
	SubBlockSize int
}

// NewShape returns the Shape for blockSize; sub-blocks are half as wide.
func NewShape(blockSize int) Shape {
	return Shape{BlockSize: blockSize, SubBlockSize: blockSize / 2}
}

// IsSub reports whether size is the sub-block size. It returns
// ErrInvalidBlockShape when size is neither of the two sizes.
func (s Shape) IsSub(size int) (bool, error) {
	switch size {
	case s.BlockSize:
		return false, nil
	case s.SubBlockSize:
		return true, nil
	}
	return false, fmt.Errorf("%w: side %d (block %d, sub-block %d)",
		ErrInvalidBlockShape, size, s.BlockSize, s.SubBlockSize)
}

// Side returns the block side for the given sub-block flag.
func (s Shape) Side(sub bool) int {
	if sub {
		return s.SubBlockSize
	}
	return s.BlockSize
}

// sideOf returns the side of a square block of n samples, or 0.
func sideOf(n int) int {
	for s := 1; s*s <= n; s++ {
		if s*s == n {
			return s
		}
	}
	return 0
}
