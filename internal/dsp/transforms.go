package dsp

import (
	"math"
	"sync"

	"github.com/deepteams/blockvid/internal/pool"
)

// Orthonormal 2D DCT-II and its inverse, computed separably with a cached
// basis per block size:
//
//	basis[k][i] = s(k) * cos(pi * (2i+1) * k / 2n),  s(0) = sqrt(1/n), s(k) = sqrt(2/n)
//
// Encoder and decoder run the same float operations in the same order on the
// same integer levels, so reconstructions agree bit for bit.

var basisCache sync.Map // int -> []float64

// dctBasis returns the n*n basis matrix in row-major order (row = frequency).
func dctBasis(n int) []float64 {
	if v, ok := basisCache.Load(n); ok {
		return v.([]float64)
	}
	b := make([]float64, n*n)
	s0 := math.Sqrt(1 / float64(n))
	s1 := math.Sqrt(2 / float64(n))
	for k := 0; k < n; k++ {
		s := s1
		if k == 0 {
			s = s0
		}
		for i := 0; i < n; i++ {
			b[k*n+i] = s * math.Cos(math.Pi*float64(2*i+1)*float64(k)/float64(2*n))
		}
	}
	v, _ := basisCache.LoadOrStore(n, b)
	return v.([]float64)
}

// ForwardDCT transforms the n*n block in into out, rounding every
// coefficient to the nearest integer (half to even). in and out may alias.
func ForwardDCT(in []int32, out []int32, n int) {
	_ = in[n*n-1]
	_ = out[n*n-1]
	b := dctBasis(n)
	tmp := pool.GetFloat64(n * n)
	defer pool.PutFloat64(tmp)

	// tmp = B * X
	for k := 0; k < n; k++ {
		bk := b[k*n : k*n+n]
		for j := 0; j < n; j++ {
			var sum float64
			for i := 0; i < n; i++ {
				sum += bk[i] * float64(in[i*n+j])
			}
			tmp[k*n+j] = sum
		}
	}
	// out = tmp * B^T
	for k := 0; k < n; k++ {
		row := tmp[k*n : k*n+n]
		for l := 0; l < n; l++ {
			bl := b[l*n : l*n+n]
			var sum float64
			for j := 0; j < n; j++ {
				sum += row[j] * bl[j]
			}
			out[k*n+l] = int32(math.RoundToEven(sum))
		}
	}
}

// InverseDCT transforms the n*n coefficient block in back to the sample
// domain. The result is not rounded; callers round and clamp when adding
// the prediction.
func InverseDCT(in []int32, out []float64, n int) {
	_ = in[n*n-1]
	_ = out[n*n-1]
	b := dctBasis(n)
	tmp := pool.GetFloat64(n * n)
	defer pool.PutFloat64(tmp)

	// tmp = B^T * C
	for i := 0; i < n; i++ {
		for l := 0; l < n; l++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += b[k*n+i] * float64(in[k*n+l])
			}
			tmp[i*n+l] = sum
		}
	}
	// out = tmp * B
	for i := 0; i < n; i++ {
		row := tmp[i*n : i*n+n]
		for j := 0; j < n; j++ {
			var sum float64
			for l := 0; l < n; l++ {
				sum += row[l] * b[l*n+j]
			}
			out[i*n+j] = sum
		}
	}
}
