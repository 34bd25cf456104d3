package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// File layout:
//
//	header  "OEF\x00" | u16 version | u16 flags | 8 reserved bytes
//	frame   u8 kind | u32 payload length | u32 CRC-32C of payload | payload
//
// All integers are little-endian. The low byte of flags holds the default
// Compression of the container.
const (
	headerSize    = 16
	formatVersion = 1

	frameHeaderSize = 9
	// upper bound for a single frame payload
	maxFramePayload = 1 << 30
)

var magic = [4]byte{'O', 'E', 'F', 0}

type frameKind uint8

const (
	frameChunk frameKind = 1
	frameGroup frameKind = 2
)

func (k frameKind) String() string {
	switch k {
	case frameChunk:
		return "chunk"
	case frameGroup:
		return "group"
	default:
		return fmt.Sprintf("frame(%d)", uint8(k))
	}
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

type fileHeader struct {
	version     uint16
	compression Compression
}

func (h fileHeader) marshal() []byte {
	b := make([]byte, headerSize)
	copy(b, magic[:])
	binary.LittleEndian.PutUint16(b[4:], h.version)
	binary.LittleEndian.PutUint16(b[6:], uint16(h.compression))
	return b
}

func readHeader(r io.ReaderAt) (fileHeader, error) {
	var h fileHeader
	b := make([]byte, headerSize)
	if _, err := r.ReadAt(b, 0); err != nil {
		if errors.Is(err, io.EOF) {
			return h, ErrNotContainer
		}
		return h, err
	}
	if !bytes.Equal(b[:4], magic[:]) {
		return h, ErrNotContainer
	}
	h.version = binary.LittleEndian.Uint16(b[4:])
	if h.version != formatVersion {
		return h, fmt.Errorf("%w: format version %d", ErrNotContainer, h.version)
	}
	h.compression = Compression(binary.LittleEndian.Uint16(b[6:]) & 0xff)
	if !h.compression.valid() {
		return h, fmt.Errorf("%w: unknown default compression %d", ErrNotContainer, h.compression)
	}
	return h, nil
}

// appendFrame encodes a frame into dst.
func appendFrame(dst []byte, kind frameKind, payload []byte) []byte {
	var hdr [frameHeaderSize]byte
	hdr[0] = byte(kind)
	binary.LittleEndian.PutUint32(hdr[1:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[5:], crc32.Checksum(payload, castagnoli))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

type frameHeader struct {
	kind   frameKind
	length uint32
	crc    uint32
}

func parseFrameHeader(b []byte) frameHeader {
	return frameHeader{
		kind:   frameKind(b[0]),
		length: binary.LittleEndian.Uint32(b[1:]),
		crc:    binary.LittleEndian.Uint32(b[5:]),
	}
}

var errTruncated = errors.New("storage: truncated frame")

// readFrameHeader reads the frame header at off. size is the file size.
func readFrameHeader(r io.ReaderAt, off, size int64) (frameHeader, error) {
	if off+frameHeaderSize > size {
		return frameHeader{}, errTruncated
	}
	b := make([]byte, frameHeaderSize)
	if _, err := r.ReadAt(b, off); err != nil {
		return frameHeader{}, err
	}
	fh := parseFrameHeader(b)
	if fh.length > maxFramePayload || off+frameHeaderSize+int64(fh.length) > size {
		return fh, errTruncated
	}
	return fh, nil
}

// readFramePayload reads and checks the payload of a frame whose header was
// read at off.
func readFramePayload(r io.ReaderAt, off int64, fh frameHeader) ([]byte, error) {
	payload := make([]byte, fh.length)
	if _, err := r.ReadAt(payload, off+frameHeaderSize); err != nil {
		return nil, err
	}
	if crc32.Checksum(payload, castagnoli) != fh.crc {
		return nil, fmt.Errorf("storage: %s frame at %d fails its checksum", fh.kind, off)
	}
	return payload, nil
}

func encodeFloats(values []float64) []byte {
	b := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return b
}

func decodeFloats(b []byte) []float64 {
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return out
}

func encodeInts(values []int64) []byte {
	b := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(b[8*i:], uint64(v))
	}
	return b
}

func decodeInts(b []byte) []int64 {
	out := make([]int64, len(b)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return out
}
