package dsp

// Intra predictors. pix is a plane of the given stride holding the samples
// reconstructed so far; (row, col) is the top-left corner of the block.
// Blocks on the top row (vertical) or left column (horizontal) have no
// neighbours and are predicted as all zero.

// IntraMode selects an intra predictor.
type IntraMode uint8

const (
	IntraVertical   IntraMode = 0
	IntraHorizontal IntraMode = 1
)

func (m IntraMode) String() string {
	switch m {
	case IntraVertical:
		return "vertical"
	case IntraHorizontal:
		return "horizontal"
	}
	return "unknown"
}

// PredictVertical replicates the row above the block downward.
func PredictVertical(dst []int32, pix []uint8, stride, row, col, size int) {
	if row == 0 {
		clear(dst[:size*size])
		return
	}
	above := pix[(row-1)*stride+col : (row-1)*stride+col+size]
	for y := 0; y < size; y++ {
		d := dst[y*size : y*size+size]
		for x, v := range above {
			d[x] = int32(v)
		}
	}
}

// PredictHorizontal replicates the column left of the block rightward.
func PredictHorizontal(dst []int32, pix []uint8, stride, row, col, size int) {
	if col == 0 {
		clear(dst[:size*size])
		return
	}
	for y := 0; y < size; y++ {
		v := int32(pix[(row+y)*stride+col-1])
		d := dst[y*size : y*size+size]
		for x := range d {
			d[x] = v
		}
	}
}

// Predict dispatches to the predictor for mode.
func Predict(mode IntraMode, dst []int32, pix []uint8, stride, row, col, size int) {
	if mode == IntraHorizontal {
		PredictHorizontal(dst, pix, stride, row, col, size)
		return
	}
	PredictVertical(dst, pix, stride, row, col, size)
}
