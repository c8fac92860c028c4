// Package pool provides bucketed sync.Pool instances for the per-block
// scratch buffers of the codec. Buffers are organized by block area so a
// sub-block request never pins a full-block buffer.
package pool

import "sync"

// Size classes for bucketed pools, in elements (block areas 4x4 .. 64x64).
const (
	Size16   = 16
	Size64   = 64
	Size256  = 256
	Size1K   = 1024
	Size4K   = 4096
	numSizes = 5
)

// bucketIndex returns the pool index for a given length.
func bucketIndex(n int) int {
	switch {
	case n <= Size16:
		return 0
	case n <= Size64:
		return 1
	case n <= Size256:
		return 2
	case n <= Size1K:
		return 3
	default:
		return 4
	}
}

var sizes = [numSizes]int{Size16, Size64, Size256, Size1K, Size4K}

var float64Pools [numSizes]sync.Pool

func init() {
	for i := range sizes {
		sz := sizes[i]
		float64Pools[i] = sync.Pool{
			New: func() any {
				b := make([]float64, sz)
				return &b
			},
		}
	}
}

// GetFloat64 returns a zeroed float64 slice of length n from the pool.
// The caller should call PutFloat64 when done.
func GetFloat64(n int) []float64 {
	bp := float64Pools[bucketIndex(n)].Get().(*[]float64)
	b := *bp
	if cap(b) < n {
		b = make([]float64, n)
		*bp = b
		return b
	}
	b = b[:n]
	clear(b)
	return b
}

// PutFloat64 returns a slice obtained from GetFloat64 to the pool.
func PutFloat64(b []float64) {
	c := cap(b)
	if c < Size16 {
		return
	}
	b = b[:c]
	float64Pools[bucketIndex(c)].Put(&b)
}
