package dsp

// LoadBlock copies the size*size block at (row, col) of pix into dst.
func LoadBlock(dst []int32, pix []uint8, stride, row, col, size int) {
	for y := 0; y < size; y++ {
		src := pix[(row+y)*stride+col : (row+y)*stride+col+size]
		d := dst[y*size : y*size+size]
		for x, v := range src {
			d[x] = int32(v)
		}
	}
}

// SAD returns the sum of absolute differences between a and b.
func SAD(a, b []int32) int {
	_ = b[len(a)-1]
	s := 0
	for i, v := range a {
		d := int(v) - int(b[i])
		if d < 0 {
			d = -d
		}
		s += d
	}
	return s
}

// SADBlock returns the SAD between the block cur and the size*size block
// of pix at (row, col), read every step samples (1 for a plane, 2 for a
// half-pixel grid at full-pixel spacing).
func SADBlock(cur []int32, pix []uint8, stride, row, col, size, step int) int {
	s := 0
	for y := 0; y < size; y++ {
		off := (row+y*step)*stride + col
		c := cur[y*size : y*size+size]
		for x, v := range c {
			d := int(v) - int(pix[off+x*step])
			if d < 0 {
				d = -d
			}
			s += d
		}
	}
	return s
}

// MAE returns the mean absolute difference between a and b.
func MAE(a, b []int32) float64 {
	if len(a) == 0 {
		return 0
	}
	return float64(SAD(a, b)) / float64(len(a))
}

// Residual writes cur - pred into dst without clamping.
func Residual(dst, cur, pred []int32) {
	_ = cur[len(dst)-1]
	_ = pred[len(dst)-1]
	for i := range dst {
		dst[i] = cur[i] - pred[i]
	}
}

// Reconstruct adds the residual to the prediction, rounds and clamps the
// sum to [0, 255] and stores the size*size result at (row, col) of pix.
func Reconstruct(pix []uint8, stride, row, col, size int, pred []int32, res []float64) {
	for y := 0; y < size; y++ {
		out := pix[(row+y)*stride+col : (row+y)*stride+col+size]
		p := pred[y*size : y*size+size]
		r := res[y*size : y*size+size]
		for x := range out {
			out[x] = RoundClip8b(float64(p[x]) + r[x])
		}
	}
}
