// Package container defines the RIFF-based stream format: FourCC values,
// chunk layout, and the stream header and frame chunks.
//
// A stream is
//
//	RIFF <size> GVID
//	  GHDR  stream header
//	  FRAM  one chunk per frame, in coding order
//
// All integers are little-endian. Chunk payloads are padded to an even
// length.
package container

import "encoding/binary"

// FourCC creates a FourCC value from four bytes (little-endian).
func FourCC(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// Container FourCC values.
var (
	FourCCRIFF = FourCC('R', 'I', 'F', 'F')
	FourCCGVID = FourCC('G', 'V', 'I', 'D')
	FourCCGHDR = FourCC('G', 'H', 'D', 'R')
	FourCCFRAM = FourCC('F', 'R', 'A', 'M')
)

// Container structure sizes.
const (
	TagSize         = 4  // Size of a chunk tag (e.g. "FRAM")
	ChunkSizeBytes  = 4  // Size needed to store chunk's size
	ChunkHeaderSize = 8  // Size of a chunk header
	RIFFHeaderSize  = 12 // Size of the RIFF header ("RIFFnnnnGVID")
	GHDRChunkSize   = 20 // Size of a GHDR payload
	DigestSize      = 32 // Size of a frame digest
)

// Limits.
const (
	Version         = 1
	MaxDimension    = 1 << 16
	MaxBlockSize    = 1 << 8
	MaxRows         = 1 << 16
	MaxChunkPayload = ^uint32(0) - ChunkHeaderSize - 1

	payloadAllocLimit = 1 << 20 // Larger payloads are read incrementally
)

// Flags are the stream-wide coding options a decoder needs.
type Flags uint8

const (
	FlagVBS    Flags = 1 << 0 // variable block size
	FlagFME    Flags = 1 << 1 // half-pixel motion vectors
	FlagDigest Flags = 1 << 2 // every frame carries a digest

	AllValidFlags = FlagVBS | FlagFME | FlagDigest
)

// ReadLE16 reads a little-endian uint16 from data.
func ReadLE16(data []byte) uint16 {
	return binary.LittleEndian.Uint16(data)
}

// ReadLE32 reads a little-endian uint32 from data.
func ReadLE32(data []byte) uint32 {
	return binary.LittleEndian.Uint32(data)
}

// PutLE16 writes a little-endian uint16 to data.
func PutLE16(data []byte, v uint16) {
	binary.LittleEndian.PutUint16(data, v)
}

// PutLE32 writes a little-endian uint32 to data.
func PutLE32(data []byte, v uint32) {
	binary.LittleEndian.PutUint32(data, v)
}
