// Package lossy implements the block coding pipeline of the codec: intra
// and inter block coders, the residual coder, rate-distortion mode
// decision, descriptor serialization and the frame encoder and decoder.
//
// A frame is processed in raster order of blocks. Every block is coded
// either whole or as four sub-blocks (top-left, top-right, bottom-left,
// bottom-right). The encoder runs the decoder's reconstruction for every
// block it codes, so its working plane always equals what a decoder
// reproduces from the stream.
package lossy

import (
	"errors"
	"fmt"

	"github.com/deepteams/blockvid/internal/dsp"
	"github.com/deepteams/blockvid/internal/motion"
)

// ErrCorrupt reports a frame record that cannot have come from the encoder.
var ErrCorrupt = errors.New("lossy: corrupt frame")

// FrameType distinguishes intra-coded from inter-coded frames.
type FrameType uint8

const (
	FrameI FrameType = iota
	FrameP
)

func (t FrameType) String() string {
	switch t {
	case FrameI:
		return "I"
	case FrameP:
		return "P"
	}
	return fmt.Sprintf("FrameType(%d)", uint8(t))
}

// Descriptor is the side information of one block or sub-block.
type Descriptor struct {
	Intra bool
	Mode  dsp.IntraMode
	MV    motion.Vector
	Ref   int
	Sub   bool
}

// RowController supplies the QP of each block row and is charged with the
// bits the row spent. *ratectl.Controller implements it.
type RowController interface {
	QP(isI bool) int
	UseBits(bits int)
	UpdateUsedRows()
	// Adaptive reports whether QPs depend on bits spent by earlier rows.
	Adaptive() bool
}

// FixedQP is a RowController that always returns the same QP.
type FixedQP int

func (q FixedQP) QP(bool) int   { return int(q) }
func (FixedQP) UseBits(int)     {}
func (FixedQP) UpdateUsedRows() {}
func (FixedQP) Adaptive() bool  { return false }
