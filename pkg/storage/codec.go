package storage

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

// Compression selects the codec applied to chunk frames.
type Compression uint8

const (
	CompressionNone    Compression = 0
	CompressionDeflate Compression = 1
	CompressionSnappy  Compression = 2
	CompressionZstd    Compression = 3
	CompressionBrotli  Compression = 4
	CompressionLZ4     Compression = 5
)

// DefaultCompression is used by Create unless WithCompression says
// otherwise.
const DefaultCompression = CompressionZstd

var compressionNames = map[Compression]string{
	CompressionNone:    "none",
	CompressionDeflate: "deflate",
	CompressionSnappy:  "snappy",
	CompressionZstd:    "zstd",
	CompressionBrotli:  "brotli",
	CompressionLZ4:     "lz4",
}

func (c Compression) String() string {
	if s, ok := compressionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

func (c Compression) valid() bool {
	_, ok := compressionNames[c]
	return ok
}

// Compressions lists every supported codec.
func Compressions() []Compression {
	return []Compression{
		CompressionNone, CompressionDeflate, CompressionSnappy,
		CompressionZstd, CompressionBrotli, CompressionLZ4,
	}
}

// ParseCompression maps a codec name such as "zstd" to its Compression.
func ParseCompression(name string) (Compression, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, s := range compressionNames {
		if s == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("storage: unknown compression %q", name)
}

func compressData(data []byte, algorithm Compression) ([]byte, error) {
	var b bytes.Buffer
	var w io.WriteCloser

	switch algorithm {
	case CompressionNone:
		return append([]byte(nil), data...), nil
	case CompressionDeflate:
		var err error
		w, err = flate.NewWriter(&b, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
	case CompressionSnappy:
		w = snappy.NewBufferedWriter(&b)
	case CompressionZstd:
		var err error
		w, err = zstd.NewWriter(&b)
		if err != nil {
			return nil, err
		}
	case CompressionBrotli:
		w = brotli.NewWriterLevel(&b, brotli.DefaultCompression)
	case CompressionLZ4:
		w = lz4.NewWriter(&b)
	default:
		return nil, fmt.Errorf("storage: unknown compression %d", algorithm)
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// decompressData inflates a chunk. size is the expected decoded length.
func decompressData(data []byte, algorithm Compression, size int) ([]byte, error) {
	var r io.Reader

	switch algorithm {
	case CompressionNone:
		r = bytes.NewReader(data)
	case CompressionDeflate:
		fr := flate.NewReader(bytes.NewReader(data))
		defer fr.Close()
		r = fr
	case CompressionSnappy:
		r = snappy.NewReader(bytes.NewReader(data))
	case CompressionZstd:
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case CompressionBrotli:
		r = brotli.NewReader(bytes.NewReader(data))
	case CompressionLZ4:
		r = lz4.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("storage: unknown compression %d", algorithm)
	}

	var b bytes.Buffer
	b.Grow(size)
	if _, err := io.Copy(&b, io.LimitReader(r, int64(size)+1)); err != nil {
		return nil, err
	}
	if b.Len() != size {
		return nil, fmt.Errorf("storage: chunk decodes to %d bytes, want %d", b.Len(), size)
	}
	return b.Bytes(), nil
}
