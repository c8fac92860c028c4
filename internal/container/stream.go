package container

import (
	"fmt"
	"io"
	"math"

	"github.com/deepteams/blockvid/internal/bitio"
)

// Header is the GHDR chunk.
//
//	0   version     u8
//	1   flags       u8
//	2   block size  u16
//	4   width       u32
//	8   height      u32
//	12  fps * 1000  u32
//	16  frame count u32
type Header struct {
	Width, Height int
	BlockSize     int
	Flags         Flags
	FPS           float64
	Frames        int
}

// Validate checks the header fields against the format limits.
func (h *Header) Validate() error {
	switch {
	case h.Width <= 0 || h.Height <= 0 || h.Width > MaxDimension || h.Height > MaxDimension:
		return fmt.Errorf("%w: frame size %dx%d", ErrInvalidChunk, h.Width, h.Height)
	case h.BlockSize < 2 || h.BlockSize%2 != 0 || h.BlockSize > MaxBlockSize:
		return fmt.Errorf("%w: block size %d", ErrInvalidChunk, h.BlockSize)
	case h.Flags&^AllValidFlags != 0:
		return fmt.Errorf("%w: %#x", ErrInvalidFlags, uint8(h.Flags))
	case h.FPS < 0 || h.FPS*1000 > math.MaxUint32 || math.IsNaN(h.FPS):
		return fmt.Errorf("%w: fps %v", ErrInvalidChunk, h.FPS)
	case h.Frames < 0 || int64(h.Frames) > math.MaxUint32:
		return fmt.Errorf("%w: %d frames", ErrInvalidChunk, h.Frames)
	}
	return nil
}

// Rows returns the number of block rows of a frame.
func (h *Header) Rows() int {
	return (h.Height + h.BlockSize - 1) / h.BlockSize
}

// MarshalBinary encodes the GHDR payload.
func (h *Header) MarshalBinary() ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	b := make([]byte, GHDRChunkSize)
	b[0] = Version
	b[1] = uint8(h.Flags)
	PutLE16(b[2:4], uint16(h.BlockSize))
	PutLE32(b[4:8], uint32(h.Width))
	PutLE32(b[8:12], uint32(h.Height))
	PutLE32(b[12:16], uint32(math.Round(h.FPS*1000)))
	PutLE32(b[16:20], uint32(h.Frames))
	return b, nil
}

// UnmarshalBinary decodes a GHDR payload.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) != GHDRChunkSize {
		return fmt.Errorf("%w: GHDR size %d", ErrInvalidChunk, len(b))
	}
	if b[0] != Version {
		return fmt.Errorf("%w: %d", ErrUnsupported, b[0])
	}
	*h = Header{
		Flags:     Flags(b[1]),
		BlockSize: int(ReadLE16(b[2:4])),
		Width:     int(ReadLE32(b[4:8])),
		Height:    int(ReadLE32(b[8:12])),
		FPS:       float64(ReadLE32(b[12:16])) / 1000,
		Frames:    int(ReadLE32(b[16:20])),
	}
	return h.Validate()
}

// Frame is a FRAM chunk.
//
//	type        u8
//	qp          u8 per block row
//	residual    u32 bit count, then the bytes
//	descriptors u32 bit count, then the bytes
//	digest      32 bytes, with FlagDigest
type Frame struct {
	Type        uint8
	RowQP       []int
	Residual    bitio.Bitstream
	Descriptors bitio.Bitstream
	Digest      [DigestSize]byte
}

func appendStream(dst []byte, s bitio.Bitstream) ([]byte, error) {
	if s.Bits < 0 || len(s.Data) != (s.Bits+7)/8 || int64(s.Bits) > math.MaxUint32 {
		return dst, fmt.Errorf("%w: bitstream of %d bits in %d bytes", ErrInvalidChunk, s.Bits, len(s.Data))
	}
	var n [4]byte
	PutLE32(n[:], uint32(s.Bits))
	dst = append(dst, n[:]...)
	return append(dst, s.Data...), nil
}

// marshalFrame encodes f for a stream with header h.
func marshalFrame(h *Header, f *Frame) ([]byte, error) {
	if len(f.RowQP) != h.Rows() {
		return nil, fmt.Errorf("%w: %d row QPs for %d rows", ErrInvalidChunk, len(f.RowQP), h.Rows())
	}
	b := make([]byte, 0, 1+len(f.RowQP)+8+len(f.Residual.Data)+len(f.Descriptors.Data)+DigestSize)
	b = append(b, f.Type)
	for _, qp := range f.RowQP {
		if qp < 0 || qp > math.MaxUint8 {
			return nil, fmt.Errorf("%w: qp %d", ErrInvalidChunk, qp)
		}
		b = append(b, uint8(qp))
	}
	var err error
	if b, err = appendStream(b, f.Residual); err != nil {
		return nil, err
	}
	if b, err = appendStream(b, f.Descriptors); err != nil {
		return nil, err
	}
	if h.Flags&FlagDigest != 0 {
		b = append(b, f.Digest[:]...)
	}
	return b, nil
}

// frameReader walks a FRAM payload.
type frameReader struct {
	b   []byte
	pos int
}

func (r *frameReader) take(n int) ([]byte, error) {
	if n < 0 || len(r.b)-r.pos < n {
		return nil, fmt.Errorf("%w: FRAM payload", ErrTruncated)
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *frameReader) stream() (bitio.Bitstream, error) {
	n, err := r.take(4)
	if err != nil {
		return bitio.Bitstream{}, err
	}
	bits := int64(ReadLE32(n))
	data, err := r.take(int((bits + 7) / 8))
	if err != nil {
		return bitio.Bitstream{}, err
	}
	return bitio.Bitstream{Data: append([]byte(nil), data...), Bits: int(bits)}, nil
}

// unmarshalFrame decodes a FRAM payload of a stream with header h.
func unmarshalFrame(h *Header, b []byte) (*Frame, error) {
	r := &frameReader{b: b}
	t, err := r.take(1)
	if err != nil {
		return nil, err
	}
	f := &Frame{Type: t[0]}
	qps, err := r.take(h.Rows())
	if err != nil {
		return nil, err
	}
	f.RowQP = make([]int, len(qps))
	for i, qp := range qps {
		f.RowQP[i] = int(qp)
	}
	if f.Residual, err = r.stream(); err != nil {
		return nil, err
	}
	if f.Descriptors, err = r.stream(); err != nil {
		return nil, err
	}
	if h.Flags&FlagDigest != 0 {
		d, err := r.take(DigestSize)
		if err != nil {
			return nil, err
		}
		copy(f.Digest[:], d)
	}
	if r.pos != len(b) {
		return nil, fmt.Errorf("%w: %d trailing bytes in FRAM", ErrInvalidChunk, len(b)-r.pos)
	}
	return f, nil
}

// Writer assembles a stream in memory and writes it out on Close, once the
// RIFF size and frame count are known.
type Writer struct {
	w      io.Writer
	h      Header
	body   []byte
	frames int
	closed bool
}

// NewWriter returns a Writer for a stream with header h. h.Frames is
// filled in by Close.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	h.Frames = 0
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return &Writer{w: w, h: h}, nil
}

// WriteFrame appends one frame.
func (w *Writer) WriteFrame(f *Frame) error {
	if w.closed {
		return fmt.Errorf("container: write after close")
	}
	payload, err := marshalFrame(&w.h, f)
	if err != nil {
		return err
	}
	body, err := AppendChunk(w.body, FourCCFRAM, payload)
	if err != nil {
		return err
	}
	w.body = body
	w.frames++
	return nil
}

// Close writes the complete stream to the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.h.Frames = w.frames
	hdr, err := w.h.MarshalBinary()
	if err != nil {
		return err
	}
	chunks, err := AppendChunk(nil, FourCCGHDR, hdr)
	if err != nil {
		return err
	}
	size := uint64(len(chunks)) + uint64(len(w.body)) + TagSize
	if size > uint64(MaxChunkPayload) {
		return ErrTooLarge
	}
	out := make([]byte, RIFFHeaderSize, RIFFHeaderSize+len(chunks)+len(w.body))
	PutRIFFHeader(out, uint32(len(chunks)+len(w.body)))
	out = append(out, chunks...)
	out = append(out, w.body...)
	_, err = w.w.Write(out)
	return err
}

// Reader reads a stream frame by frame.
type Reader struct {
	r      io.Reader
	h      Header
	remain int64 // bytes of RIFF body left
	read   int
}

// NewReader reads the RIFF and GHDR headers from r.
func NewReader(r io.Reader) (*Reader, error) {
	var riff [RIFFHeaderSize]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	rh, _, err := ParseRIFFHeader(riff[:])
	if err != nil {
		return nil, err
	}
	rd := &Reader{r: r, remain: int64(rh.FileSize) - TagSize}
	fourcc, size, err := rd.chunkHeader()
	if err != nil {
		return nil, err
	}
	if fourcc != FourCCGHDR {
		return nil, fmt.Errorf("%w: first chunk %s, want GHDR", ErrInvalidChunk, FourCCString(fourcc))
	}
	if size != GHDRChunkSize {
		return nil, fmt.Errorf("%w: GHDR size %d", ErrInvalidChunk, size)
	}
	c, err := readPayload(r, fourcc, size)
	if err != nil {
		return nil, err
	}
	if err := rd.h.UnmarshalBinary(c.Payload); err != nil {
		return nil, err
	}
	return rd, nil
}

// chunkHeader reads the next chunk header and charges the whole chunk
// against the RIFF body size.
func (r *Reader) chunkHeader() (fourcc, size uint32, err error) {
	if r.remain <= 0 {
		return 0, 0, io.EOF
	}
	fourcc, size, err = ReadChunkHeader(r.r)
	if err == io.EOF {
		return 0, 0, fmt.Errorf("%w: %d bytes missing", ErrTruncated, r.remain)
	}
	if err != nil {
		return 0, 0, err
	}
	r.remain -= ChunkHeaderSize + int64(PaddedSize(size))
	if r.remain < 0 {
		return 0, 0, fmt.Errorf("%w: chunk %s of %d bytes overruns RIFF size", ErrInvalidChunk, FourCCString(fourcc), size)
	}
	return fourcc, size, nil
}

func (r *Reader) chunk() (Chunk, error) {
	fourcc, size, err := r.chunkHeader()
	if err != nil {
		return Chunk{}, err
	}
	return readPayload(r.r, fourcc, size)
}

// Header returns the stream header.
func (r *Reader) Header() Header { return r.h }

// Next returns the next frame, or io.EOF after the last one. Chunks other
// than FRAM are skipped.
func (r *Reader) Next() (*Frame, error) {
	for {
		c, err := r.chunk()
		if err == io.EOF {
			if r.read != r.h.Frames {
				return nil, fmt.Errorf("%w: %d of %d frames", ErrTruncated, r.read, r.h.Frames)
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		if c.FourCC != FourCCFRAM {
			continue
		}
		f, err := unmarshalFrame(&r.h, c.Payload)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", r.read, err)
		}
		r.read++
		return f, nil
	}
}
