package lossy

import (
	"github.com/deepteams/blockvid/internal/dsp"
	"github.com/deepteams/blockvid/internal/entropy"
	"github.com/deepteams/blockvid/internal/frame"
	"github.com/deepteams/blockvid/internal/motion"
)

// scratch holds the per-worker buffers of block coding. One scratch is
// never used by two goroutines at once.
type scratch struct {
	cur, pred, alt, res, seq []int32
	recon                    []float64

	normal, split trial
}

func newScratch(blockSize int) *scratch {
	n := blockSize * blockSize
	return &scratch{
		cur:   make([]int32, n),
		pred:  make([]int32, n),
		alt:   make([]int32, n),
		res:   make([]int32, n),
		seq:   make([]int32, n),
		recon: make([]float64, n),
	}
}

// trial is the outcome of coding one block either whole or split.
type trial struct {
	tokens   []int32 // residual tokens, block order
	desc     []int32 // descriptor values
	blocks   []Descriptor
	resBits  int
	descBits int
	sad      int // original against reconstruction, whole block
	last     motion.Vector
}

func (t *trial) reset() {
	t.tokens = t.tokens[:0]
	t.desc = t.desc[:0]
	t.blocks = t.blocks[:0]
	t.resBits, t.descBits, t.sad = 0, 0, 0
	t.last = motion.Vector{}
}

// addDescriptor records d and its serialized values.
func (t *trial) addDescriptor(d Descriptor, values []int32) {
	t.blocks = append(t.blocks, d)
	for _, v := range values {
		t.descBits += entropy.TokenBits(v)
	}
	t.desc = append(t.desc, values...)
}

// cost is the Lagrangian cost J = D + lambda*R.
func (t *trial) cost(lambda float64) float64 {
	return float64(t.sad) + lambda*float64(t.resBits+t.descBits)
}

// quadrants returns the top-left corners of the blocks a block at (row,
// col) is coded as: itself, or its four sub-blocks TL, TR, BL, BR.
func quadrants(shape dsp.Shape, row, col int, sub bool) [][2]int {
	if !sub {
		return [][2]int{{row, col}}
	}
	h := shape.SubBlockSize
	return [][2]int{{row, col}, {row, col + h}, {row + h, col}, {row + h, col + h}}
}

// IntraCoder codes blocks with the vertical or horizontal predictor.
type IntraCoder struct {
	shape    dsp.Shape
	residual *ResidualCoder
	vbs      bool
}

// NewIntraCoder returns an IntraCoder sharing residual.
func NewIntraCoder(shape dsp.Shape, residual *ResidualCoder, vbs bool) *IntraCoder {
	return &IntraCoder{shape: shape, residual: residual, vbs: vbs}
}

// choose leaves the better prediction for s.cur in s.pred. Ties go to the
// vertical predictor.
func (c *IntraCoder) choose(s *scratch, work *frame.Plane, row, col, size int) dsp.IntraMode {
	n := size * size
	dsp.PredictVertical(s.pred[:n], work.Pix, work.Stride, row, col, size)
	dsp.PredictHorizontal(s.alt[:n], work.Pix, work.Stride, row, col, size)
	if dsp.SAD(s.cur[:n], s.alt[:n]) < dsp.SAD(s.cur[:n], s.pred[:n]) {
		copy(s.pred[:n], s.alt[:n])
		return dsp.IntraHorizontal
	}
	return dsp.IntraVertical
}

// Process codes the block at (row, col) of src into t, whole or as four
// sub-blocks, and writes its reconstruction into work. It reads work only
// outside the block, so repeating it yields the same result.
func (c *IntraCoder) Process(s *scratch, t *trial, src, work *frame.Plane, row, col int, sub bool, qp int) error {
	t.reset()
	size := c.shape.Side(sub)
	n := size * size
	var vals [2]int32
	for _, q := range quadrants(c.shape, row, col, sub) {
		src.Load(s.cur[:n], q[0], q[1], size)
		mode := c.choose(s, work, q[0], q[1], size)
		dsp.Residual(s.res[:n], s.cur[:n], s.pred[:n])
		if err := c.residual.Quantize(s.res[:n], size, qp); err != nil {
			return err
		}
		var bits int
		t.tokens, bits = c.residual.Tokens(t.tokens, s.res[:n], s.seq, size)
		t.resBits += bits
		if err := c.residual.Apply(work, q[0], q[1], size, s.pred, s.res, qp, s.recon); err != nil {
			return err
		}
		d := Descriptor{Intra: true, Mode: mode, Sub: sub}
		t.addDescriptor(d, appendIntra(vals[:0], d, c.vbs))
	}
	t.sad = blockSAD(s, src, work, row, col, c.shape.BlockSize)
	return nil
}

// InterCoder codes blocks by motion-compensated prediction from the
// reference set.
type InterCoder struct {
	shape    dsp.Shape
	residual *ResidualCoder
	est      motion.Estimator
	vbs, fme bool
}

// NewInterCoder returns an InterCoder searching with est.
func NewInterCoder(shape dsp.Shape, residual *ResidualCoder, est motion.Estimator, vbs, fme bool) *InterCoder {
	return &InterCoder{shape: shape, residual: residual, est: est, vbs: vbs, fme: fme}
}

// Process codes the block at (row, col) of src into t, whole or as four
// sub-blocks, chaining motion vector deltas from prev. Like
// IntraCoder.Process it only writes the block region of work.
func (c *InterCoder) Process(s *scratch, t *trial, src, work *frame.Plane, refs *frame.RefSet, row, col int, sub bool, qp int, prev motion.Vector) error {
	t.reset()
	size := c.shape.Side(sub)
	n := size * size
	var vals [4]int32
	for _, q := range quadrants(c.shape, row, col, sub) {
		src.Load(s.cur[:n], q[0], q[1], size)
		m := c.est.Search(motion.Block{Samples: s.cur[:n], Row: q[0], Col: q[1], Size: size, Pred: prev}, refs)
		if err := motion.Predict(s.pred[:n], refs.Get(m.Ref), q[0], q[1], size, m.MV); err != nil {
			return err
		}
		dsp.Residual(s.res[:n], s.cur[:n], s.pred[:n])
		if err := c.residual.Quantize(s.res[:n], size, qp); err != nil {
			return err
		}
		var bits int
		t.tokens, bits = c.residual.Tokens(t.tokens, s.res[:n], s.seq, size)
		t.resBits += bits
		if err := c.residual.Apply(work, q[0], q[1], size, s.pred, s.res, qp, s.recon); err != nil {
			return err
		}
		d := Descriptor{MV: m.MV, Ref: m.Ref, Sub: sub}
		t.addDescriptor(d, appendInter(vals[:0], d, prev, c.vbs, c.fme))
		prev = m.MV
	}
	t.last = prev
	t.sad = blockSAD(s, src, work, row, col, c.shape.BlockSize)
	return nil
}

// blockSAD compares the source block at (row, col) with its reconstruction.
func blockSAD(s *scratch, src, work *frame.Plane, row, col, size int) int {
	src.Load(s.cur[:size*size], row, col, size)
	return dsp.SADBlock(s.cur[:size*size], work.Pix, work.Stride, row, col, size, 1)
}
