package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Common errors.
var (
	ErrInvalidRIFF   = errors.New("container: invalid RIFF header")
	ErrInvalidStream = errors.New("container: invalid GVID signature")
	ErrTruncated     = errors.New("container: truncated data")
	ErrInvalidChunk  = errors.New("container: invalid chunk")
	ErrTooLarge      = errors.New("container: stream too large")
	ErrInvalidFlags  = errors.New("container: invalid flags")
	ErrUnsupported   = errors.New("container: unsupported version")
)

// Chunk represents a single RIFF chunk with its FourCC tag and payload.
type Chunk struct {
	FourCC  uint32
	Payload []byte
}

// RIFFHeader holds the parsed RIFF container header.
type RIFFHeader struct {
	FileSize uint32 // total RIFF file size (excluding 8-byte RIFF header)
}

// ParseRIFFHeader validates and parses the 12-byte RIFF/GVID header from data.
// Returns the header and the number of bytes consumed.
func ParseRIFFHeader(data []byte) (RIFFHeader, int, error) {
	if len(data) < RIFFHeaderSize {
		return RIFFHeader{}, 0, ErrTruncated
	}
	if ReadLE32(data[0:4]) != FourCCRIFF {
		return RIFFHeader{}, 0, ErrInvalidRIFF
	}
	fileSize := ReadLE32(data[4:8])
	if fileSize < TagSize {
		return RIFFHeader{}, 0, ErrInvalidRIFF
	}
	if fileSize > MaxChunkPayload {
		return RIFFHeader{}, 0, ErrTooLarge
	}
	if ReadLE32(data[8:12]) != FourCCGVID {
		return RIFFHeader{}, 0, ErrInvalidStream
	}
	return RIFFHeader{FileSize: fileSize}, RIFFHeaderSize, nil
}

// PutRIFFHeader writes the RIFF/GVID header for a body of bodySize bytes
// (the chunks following the header) into buf.
func PutRIFFHeader(buf []byte, bodySize uint32) {
	PutLE32(buf[0:4], FourCCRIFF)
	PutLE32(buf[4:8], bodySize+TagSize)
	PutLE32(buf[8:12], FourCCGVID)
}

// PaddedSize returns the payload size padded to an even number of bytes,
// as required by the RIFF format.
func PaddedSize(size uint32) uint32 {
	return size + (size & 1)
}

// FourCCString returns a human-readable string for a FourCC value.
func FourCCString(fourcc uint32) string {
	b := [4]byte{
		byte(fourcc),
		byte(fourcc >> 8),
		byte(fourcc >> 16),
		byte(fourcc >> 24),
	}
	return string(b[:])
}

// ReadChunkHeader reads the FourCC and payload size of the next chunk.
// It returns io.EOF when r is exhausted at a chunk boundary.
func ReadChunkHeader(r io.Reader) (fourcc, size uint32, err error) {
	var hdr [ChunkHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return 0, 0, io.EOF
		}
		return 0, 0, fmt.Errorf("%w: reading chunk header: %w", ErrTruncated, err)
	}
	size = ReadLE32(hdr[4:8])
	if size > MaxChunkPayload {
		return 0, 0, ErrTooLarge
	}
	return ReadLE32(hdr[0:4]), size, nil
}

// readPayload reads a chunk payload of size bytes and its padding byte.
// Payloads above payloadAllocLimit grow as data arrives, so a forged size
// on a short input fails without allocating the claimed size.
func readPayload(r io.Reader, fourcc, size uint32) (Chunk, error) {
	padded := int64(PaddedSize(size))
	var payload []byte
	var err error
	if padded <= payloadAllocLimit {
		payload = make([]byte, padded)
		_, err = io.ReadFull(r, payload)
	} else {
		var buf bytes.Buffer
		_, err = io.CopyN(&buf, r, padded)
		payload = buf.Bytes()
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: reading %s payload: %w", ErrTruncated, FourCCString(fourcc), err)
	}
	// Return only the actual payload (not padding byte).
	return Chunk{FourCC: fourcc, Payload: payload[:size]}, nil
}

// AppendChunk appends the chunk fourcc with payload, padded, to dst.
func AppendChunk(dst []byte, fourcc uint32, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > uint64(MaxChunkPayload) {
		return dst, ErrTooLarge
	}
	var hdr [ChunkHeaderSize]byte
	PutLE32(hdr[0:4], fourcc)
	PutLE32(hdr[4:8], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	if len(payload)&1 != 0 {
		dst = append(dst, 0)
	}
	return dst, nil
}
