package lossy

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deepteams/blockvid/internal/dsp"
	"github.com/deepteams/blockvid/internal/entropy"
	"github.com/deepteams/blockvid/internal/frame"
	"github.com/deepteams/blockvid/internal/motion"
)

// Config holds the block coding parameters shared by Encoder and Decoder.
type Config struct {
	BlockSize   int
	Approximate int // residual approximation exponent, 0 disables
	VBS         bool
	Lambda      float64
	FME         bool
	Entropy     bool
	Motion      motion.Params // HalfPel follows FME
	Logger      logrus.FieldLogger
}

// Validate checks the parameters the block pipeline depends on.
func (c *Config) Validate() error {
	switch {
	case c.BlockSize < 2 || c.BlockSize%2 != 0:
		return fmt.Errorf("lossy: block size %d must be even and at least 2", c.BlockSize)
	case c.Approximate < 0:
		return fmt.Errorf("lossy: negative approximation exponent %d", c.Approximate)
	case c.Lambda < 0:
		return fmt.Errorf("lossy: negative lambda %g", c.Lambda)
	}
	return nil
}

func (c *Config) logger() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}

// Record is a coded frame as it is stored: everything the decoder needs.
type Record struct {
	Type        FrameType
	RowQP       []int
	Residual    entropy.Payload
	Descriptors entropy.Payload
}

// Frame is the encoder's result for one frame.
type Frame struct {
	Record
	Bits      int   // residual plus descriptor payload bits
	RowBits   []int // estimated bits per row, residual and descriptors
	Blocks    []Descriptor
	SubBlocks int // blocks coded as four sub-blocks
	Recon     *frame.Plane
}

// rowOutput collects one block row; rows are concatenated in order once
// the whole frame is coded.
type rowOutput struct {
	tokens  []int32
	desc    []int32
	blocks  []Descriptor
	resBits int
	bits    int
	subs    int
}

// frameState is the per-frame context shared by all rows.
type frameState struct {
	src, work  *frame.Plane
	refs       *frame.RefSet
	typ        FrameType
	rc         RowController
	rows, cols int
	qp         []int
	out        []rowOutput
}

// Encoder codes frames block by block. It is safe for use by one frame at
// a time; rows of a frame run on its Workers.
type Encoder struct {
	cfg     Config
	shape   dsp.Shape
	intra   *IntraCoder
	inter   *InterCoder
	workers *Workers
	log     logrus.FieldLogger
}

// NewEncoder returns an Encoder for cfg running rows on w.
func NewEncoder(cfg Config, w *Workers) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("lossy: nil workers")
	}
	mp := cfg.Motion
	mp.HalfPel = cfg.FME
	est, err := motion.New(mp)
	if err != nil {
		return nil, err
	}
	shape := dsp.NewShape(cfg.BlockSize)
	residual := NewResidualCoder(shape, cfg.Approximate)
	return &Encoder{
		cfg:     cfg,
		shape:   shape,
		intra:   NewIntraCoder(shape, residual, cfg.VBS),
		inter:   NewInterCoder(shape, residual, est, cfg.VBS, cfg.FME),
		workers: w,
		log:     cfg.logger(),
	}, nil
}

// EncodeFrame codes src as a frame of type typ against refs. Row QPs come
// from rc, which is charged with every row's bits. Neither src nor refs is
// modified; the caller publishes the returned reconstruction.
func (e *Encoder) EncodeFrame(ctx context.Context, src *frame.Plane, refs *frame.RefSet, typ FrameType, rc RowController) (*Frame, error) {
	if src.PadWidth%e.shape.BlockSize != 0 || src.PadHeight%e.shape.BlockSize != 0 {
		return nil, fmt.Errorf("lossy: plane %dx%d not padded to block size %d", src.PadWidth, src.PadHeight, e.shape.BlockSize)
	}
	if typ == FrameP && refs.Len() == 0 {
		return nil, fmt.Errorf("lossy: P-frame without reference")
	}
	st := &frameState{
		src:  src,
		work: frame.NewPlane(src.Width, src.Height, e.shape.BlockSize),
		refs: refs,
		typ:  typ,
		rc:   rc,
		rows: src.PadHeight / e.shape.BlockSize,
		cols: src.PadWidth / e.shape.BlockSize,
	}
	st.qp = make([]int, st.rows)
	st.out = make([]rowOutput, st.rows)

	var err error
	if e.workers.Size() > 1 && st.rows > 1 {
		err = e.encodeParallel(ctx, st)
	} else {
		err = e.encodeSequential(ctx, st)
	}
	if err != nil {
		return nil, err
	}
	f := e.assemble(st)
	e.log.WithFields(logrus.Fields{
		"function":   "EncodeFrame",
		"type":       typ,
		"bits":       f.Bits,
		"sub_blocks": f.SubBlocks,
	}).Debug("frame encoded")
	return f, nil
}

func (e *Encoder) encodeSequential(ctx context.Context, st *frameState) error {
	return e.workers.do(func(s *scratch) error {
		for y := 0; y < st.rows; y++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			qp := st.rc.QP(st.typ == FrameI)
			if err := e.encodeRow(s, st, y, qp, nil, nil); err != nil {
				return err
			}
			st.rc.UseBits(st.out[y].bits)
			st.rc.UpdateUsedRows()
		}
		return nil
	})
}

// encodeRow codes block row y at qp. wait is called before and done after
// every block when not nil.
func (e *Encoder) encodeRow(s *scratch, st *frameState, y, qp int, wait func(x int) error, done func(x int)) error {
	st.qp[y] = qp
	out := &st.out[y]
	var prev motion.Vector
	for x := 0; x < st.cols; x++ {
		if wait != nil {
			if err := wait(x); err != nil {
				return err
			}
		}
		t, err := e.codeBlock(s, st, y*e.shape.BlockSize, x*e.shape.BlockSize, qp, prev)
		if err != nil {
			return fmt.Errorf("lossy: block (%d,%d): %w", y, x, err)
		}
		out.tokens = append(out.tokens, t.tokens...)
		out.desc = append(out.desc, t.desc...)
		out.blocks = append(out.blocks, t.blocks...)
		out.resBits += t.resBits
		if len(t.blocks) > 1 {
			out.subs++
		}
		prev = t.last
		if done != nil {
			done(x)
		}
	}
	out.bits = out.resBits + entropy.SequenceCost(out.desc)
	return nil
}

// codeBlock runs mode decision for the block at (row, col) and leaves the
// winner's reconstruction in st.work.
func (e *Encoder) codeBlock(s *scratch, st *frameState, row, col, qp int, prev motion.Vector) (*trial, error) {
	process := func(t *trial, sub bool) error {
		if st.typ == FrameI {
			return e.intra.Process(s, t, st.src, st.work, row, col, sub, qp)
		}
		return e.inter.Process(s, t, st.src, st.work, st.refs, row, col, sub, qp, prev)
	}
	if err := process(&s.normal, false); err != nil {
		return nil, err
	}
	if !e.cfg.VBS {
		return &s.normal, nil
	}
	if err := process(&s.split, true); err != nil {
		return nil, err
	}
	if preferSplit(e.cfg.Lambda, &s.normal, &s.split) {
		return &s.split, nil
	}
	// The split trial overwrote the block; restore the normal one.
	if err := process(&s.normal, false); err != nil {
		return nil, err
	}
	return &s.normal, nil
}

// preferSplit reports whether the split trial has a strictly lower cost.
func preferSplit(lambda float64, normal, split *trial) bool {
	return split.cost(lambda) < normal.cost(lambda)
}

// assemble concatenates the rows into the frame's payloads.
func (e *Encoder) assemble(st *frameState) *Frame {
	res := entropy.NewEncoder(e.cfg.Entropy)
	var desc []int32
	f := &Frame{
		Record:  Record{Type: st.typ, RowQP: st.qp},
		RowBits: make([]int, st.rows),
		Recon:   st.work,
	}
	for y := range st.out {
		out := &st.out[y]
		res.Write(out.tokens)
		desc = append(desc, out.desc...)
		f.Blocks = append(f.Blocks, out.blocks...)
		f.RowBits[y] = out.bits
		f.SubBlocks += out.subs
	}
	dsc := entropy.NewEncoder(e.cfg.Entropy)
	dsc.WriteSequence(desc)
	f.Bits = res.Bits() + dsc.Bits()
	f.Residual = res.Finish()
	f.Descriptors = dsc.Finish()
	return f
}
