package dsp

// Half-pixel interpolation grid.
//
// For a w*h plane the grid is (2w-1)*(2h-1). Even/even positions hold the
// original samples; a position between two originals holds their rounded
// mean and a position between four holds the rounded mean of all four:
//
//	(a + b + 1) >> 1
//	(a + b + c + d + 2) >> 2
//
// A block at half-pixel position (r, c) reads the grid at stride 2 starting
// from (r, c).

// HalfPelGrid returns the interpolated grid of the w*h plane pix and its
// stride (2w-1). An empty plane yields an empty grid.
func HalfPelGrid(pix []uint8, w, h, stride int) ([]uint8, int) {
	if w <= 0 || h <= 0 {
		return nil, 0
	}
	gw, gh := 2*w-1, 2*h-1
	g := make([]uint8, gw*gh)

	for y := 0; y < h; y++ {
		src := pix[y*stride : y*stride+w]
		dst := g[2*y*gw : 2*y*gw+gw]
		for x := 0; x < w-1; x++ {
			a, b := uint16(src[x]), uint16(src[x+1])
			dst[2*x] = src[x]
			dst[2*x+1] = uint8((a + b + 1) >> 1)
		}
		dst[gw-1] = src[w-1]
	}
	for y := 0; y < h-1; y++ {
		top := pix[y*stride : y*stride+w]
		bot := pix[(y+1)*stride : (y+1)*stride+w]
		dst := g[(2*y+1)*gw : (2*y+1)*gw+gw]
		for x := 0; x < w-1; x++ {
			a, b := uint16(top[x]), uint16(top[x+1])
			c, d := uint16(bot[x]), uint16(bot[x+1])
			dst[2*x] = uint8((a + c + 1) >> 1)
			dst[2*x+1] = uint8((a + b + c + d + 2) >> 2)
		}
		dst[gw-1] = uint8((uint16(top[w-1]) + uint16(bot[w-1]) + 1) >> 1)
	}
	return g, gw
}

// LoadHalfPelBlock copies the size*size block at half-pixel position
// (row, col) of grid into dst, sampling at stride 2.
func LoadHalfPelBlock(dst []int32, grid []uint8, gridStride, row, col, size int) {
	for y := 0; y < size; y++ {
		off := (row+2*y)*gridStride + col
		d := dst[y*size : y*size+size]
		for x := range d {
			d[x] = int32(grid[off+2*x])
		}
	}
}
