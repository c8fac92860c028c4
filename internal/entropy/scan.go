// Package entropy implements the residual and descriptor compression path:
// diagonal coefficient scan, run-length tokens and their Exp-Golomb
// serialization, together with the exact inverses.
package entropy

import "sync"

var scanCache sync.Map // int -> []int

// ScanOrder returns the diagonal scan order of an n*n block as raster
// indices. Antidiagonals d = x+y are visited from 0 to 2n-2; within one
// the row index increases, so each diagonal starts at its top-right end.
// The returned slice is shared and must not be modified.
func ScanOrder(n int) []int {
	if v, ok := scanCache.Load(n); ok {
		return v.([]int)
	}
	order := make([]int, 0, n*n)
	for d := 0; d <= 2*n-2; d++ {
		for y := max(0, d-n+1); y <= min(d, n-1); y++ {
			order = append(order, y*n+d-y)
		}
	}
	v, _ := scanCache.LoadOrStore(n, order)
	return v.([]int)
}

// Scan writes the n*n block in diagonal order into dst.
func Scan(dst, block []int32, n int) {
	for i, j := range ScanOrder(n) {
		dst[i] = block[j]
	}
}

// Unscan is the inverse of Scan.
func Unscan(dst, seq []int32, n int) {
	for i, j := range ScanOrder(n) {
		dst[j] = seq[i]
	}
}
