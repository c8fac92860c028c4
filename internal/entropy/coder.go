package entropy

import (
	"fmt"

	"github.com/deepteams/blockvid/internal/bitio"
)

// Payload is one coded token stream: an Exp-Golomb bitstream when Entropy
// is set, otherwise the raw token list.
type Payload struct {
	Entropy bool
	Stream  bitio.Bitstream
	Tokens  []int32
}

// Bits returns the payload size in bits. Raw payloads report the size they
// would have once entropy coded.
func (p Payload) Bits() int {
	if p.Entropy {
		return p.Stream.Bits
	}
	return Cost(p.Tokens)
}

// tokenSource yields tokens one at a time.
type tokenSource interface {
	Next() (int32, error)
	More() bool
}

type sliceSource struct {
	tokens []int32
	pos    int
}

func (s *sliceSource) Next() (int32, error) {
	if s.pos >= len(s.tokens) {
		return 0, fmt.Errorf("%w: token list exhausted", bitio.ErrTruncated)
	}
	t := s.tokens[s.pos]
	s.pos++
	return t, nil
}

func (s *sliceSource) More() bool { return s.pos < len(s.tokens) }

type streamSource struct {
	r *bitio.GolombReader
}

func (s *streamSource) Next() (int32, error) {
	v, err := s.r.ReadSE()
	if err != nil {
		return 0, err
	}
	if v > maxToken || v < -maxToken {
		return 0, fmt.Errorf("%w: token %d out of range", ErrCorrupt, v)
	}
	return int32(v), nil
}

func (s *streamSource) More() bool { return s.r.Remaining() > 0 }

const maxToken = 1<<31 - 1

func newSource(p Payload) tokenSource {
	if p.Entropy {
		return &streamSource{r: bitio.NewGolombReader(p.Stream)}
	}
	return &sliceSource{tokens: p.Tokens}
}

// Encoder accumulates the token stream of one frame.
type Encoder struct {
	entropy bool
	w       *bitio.GolombWriter
	tokens  []int32
	bits    int
}

// NewEncoder returns an Encoder producing a bitstream when entropy is set
// and a raw token list otherwise.
func NewEncoder(entropy bool) *Encoder {
	e := &Encoder{entropy: entropy}
	if entropy {
		e.w = bitio.NewGolombWriter(256)
	}
	return e
}

// Write appends tokens and returns their coded length in bits.
func (e *Encoder) Write(tokens []int32) int {
	n := 0
	if e.entropy {
		before := e.w.BitsWritten()
		for _, t := range tokens {
			e.w.WriteSE(int(t))
		}
		n = e.w.BitsWritten() - before
	} else {
		e.tokens = append(e.tokens, tokens...)
		n = Cost(tokens)
	}
	e.bits += n
	return n
}

// WriteSequence run-length codes seq, appends the tokens and returns their
// coded length.
func (e *Encoder) WriteSequence(seq []int32) int {
	return e.Write(RunLength(seq))
}

// Bits returns the number of bits written so far.
func (e *Encoder) Bits() int { return e.bits }

// Finish returns the payload. The Encoder must not be used afterwards.
func (e *Encoder) Finish() Payload {
	if e.entropy {
		return Payload{Entropy: true, Stream: e.w.Finish()}
	}
	return Payload{Tokens: e.tokens}
}

// BlockDecoder reads consecutive blocks from one frame's residual payload.
type BlockDecoder struct {
	src tokenSource
}

// NewBlockDecoder returns a BlockDecoder over p.
func NewBlockDecoder(p Payload) *BlockDecoder {
	return &BlockDecoder{src: newSource(p)}
}

// ReadBlock expands the next block's tokens into dst, which must have the
// block's length. Values past the terminal token are zero.
func (d *BlockDecoder) ReadBlock(dst []int32) error {
	return expandBlock(d.src, dst)
}

// Close reports ErrCorrupt if unread tokens remain.
func (d *BlockDecoder) Close() error {
	if d.src.More() {
		return fmt.Errorf("%w: trailing residual tokens", ErrCorrupt)
	}
	return nil
}

// Expander lazily expands a run-length coded sequence of unknown length,
// as used for a frame's descriptor list. After the terminal 0 token it
// yields zeros.
type Expander struct {
	src      tokenSource
	zeros    int
	literals int
	done     bool
}

// NewExpander returns an Expander over p.
func NewExpander(p Payload) *Expander {
	return &Expander{src: newSource(p)}
}

// Next returns the next value of the sequence.
func (e *Expander) Next() (int32, error) {
	for {
		switch {
		case e.done:
			return 0, nil
		case e.zeros > 0:
			e.zeros--
			return 0, nil
		case e.literals > 0:
			v, err := e.src.Next()
			if err != nil {
				return 0, err
			}
			if v == 0 {
				return 0, fmt.Errorf("%w: zero literal", ErrCorrupt)
			}
			e.literals--
			return v, nil
		}
		t, err := e.src.Next()
		if err != nil {
			return 0, err
		}
		switch {
		case t == 0:
			e.done = true
			if e.src.More() {
				return 0, fmt.Errorf("%w: tokens after terminal zero", ErrCorrupt)
			}
		case t > 0:
			e.zeros = int(t)
		default:
			e.literals = -int(t)
		}
	}
}

// Close reports ErrCorrupt if the sequence was not fully consumed.
func (e *Expander) Close() error {
	if e.zeros > 0 || e.literals > 0 || (!e.done && e.src.More()) {
		return fmt.Errorf("%w: trailing descriptor values", ErrCorrupt)
	}
	return nil
}
