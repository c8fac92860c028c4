package blockvid

import (
	"errors"
	"fmt"

	"github.com/deepteams/blockvid/internal/entropy"
	"github.com/deepteams/blockvid/internal/frame"
	"github.com/deepteams/blockvid/internal/lossy"
)

// Errors returned by the codec.
var (
	ErrInvalidConfig  = errors.New("blockvid: invalid configuration")
	ErrFrameSize      = errors.New("blockvid: frame size mismatch")
	ErrDigestMismatch = errors.New("blockvid: reconstruction digest mismatch")
	ErrRawPayload     = errors.New("blockvid: streams require entropy coded payloads")
	ErrClosed         = errors.New("blockvid: codec closed")
)

// ErrCorrupt reports a compressed frame the decoder cannot reproduce.
var ErrCorrupt = lossy.ErrCorrupt

// FrameType distinguishes I-frames from P-frames.
type FrameType = lossy.FrameType

const (
	FrameI = lossy.FrameI
	FrameP = lossy.FrameP
)

// Payload is a coded token stream: an Exp-Golomb bitstream, or the raw
// token list when entropy coding is off.
type Payload = entropy.Payload

// Frame is an 8-bit luma frame of Width*Height samples in row-major order.
type Frame struct {
	Width, Height int
	Y             []uint8
}

// plane converts f into a padded plane.
func (f Frame) plane(width, height, blockSize int) (*frame.Plane, error) {
	if f.Width != width || f.Height != height {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrFrameSize, f.Width, f.Height, width, height)
	}
	p, err := frame.FromSamples(f.Y, width, height, width, blockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrameSize, err)
	}
	return p, nil
}

// CompressedFrame is one coded frame.
type CompressedFrame struct {
	Type        FrameType
	RowQP       []int
	Residual    Payload
	Descriptors Payload
	// Bits is the size of both payloads in bits.
	Bits int
	// Digest is the BLAKE2b-256 hash of the reconstructed frame.
	Digest [32]byte

	// Encoder statistics; not stored in streams.
	SceneCut  bool // coded as I because its P statistics pass exceeded the threshold
	Blocks    int
	SubBlocks int
}

func (cf *CompressedFrame) record() *lossy.Record {
	return &lossy.Record{
		Type:        cf.Type,
		RowQP:       cf.RowQP,
		Residual:    cf.Residual,
		Descriptors: cf.Descriptors,
	}
}
