// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the compression algorithm used for a stored payload
// blob. Tags are persisted alongside the blob; the values are
// storage-format constants — changing them breaks existing databases.
type Tag uint8

const (
	// None stores the payload uncompressed. Also the fallback when
	// the requested algorithm cannot shrink the input.
	None Tag = 0

	// LZ4 is fast block compression for payloads of unknown shape.
	LZ4 Tag = 1

	// Zstd is zstd at its default level. Container payloads are
	// canonical CBOR of structured product data — text-heavy and
	// repetitive — where zstd's ratio clearly beats LZ4, so the
	// store writes with this tag.
	Zstd Tag = 2
)

// String returns the human-readable tag name.
func (t Tag) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseTag parses a tag from its string name.
func ParseTag(name string) (Tag, error) {
	switch name {
	case "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// maxPayloadSize bounds decompressed payload size. A declared size
// beyond this is treated as corruption rather than honored with a
// giant allocation.
const maxPayloadSize = 256 << 20

// zstd encoder/decoder are stateless once built and safe for
// concurrent use with EncodeAll/DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress compresses data with the requested algorithm and returns
// the blob together with the tag that was actually used. The tag
// downgrades to None when the algorithm cannot shrink the input
// (incompressible data), so callers must persist the returned tag,
// not the requested one.
func Compress(data []byte, tag Tag) ([]byte, Tag, error) {
	switch tag {
	case None:
		return data, None, nil

	case LZ4:
		buffer := make([]byte, lz4.CompressBlockBound(len(data)))
		var compressor lz4.Compressor
		n, err := compressor.CompressBlock(data, buffer)
		if err != nil {
			return nil, 0, fmt.Errorf("compress: lz4 compress: %w", err)
		}
		if n == 0 || n >= len(data) {
			// Incompressible; lz4 signals this with n == 0.
			return data, None, nil
		}
		return buffer[:n], LZ4, nil

	case Zstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return data, None, nil
		}
		return compressed, Zstd, nil

	default:
		return nil, 0, fmt.Errorf("compress: unknown tag %d", tag)
	}
}

// Decompress reverses Compress. originalSize is the expected
// decompressed length as recorded at write time; a mismatch is
// corruption.
func Decompress(data []byte, tag Tag, originalSize int) ([]byte, error) {
	if originalSize < 0 || originalSize > maxPayloadSize {
		return nil, fmt.Errorf("compress: declared size %d out of range", originalSize)
	}

	switch tag {
	case None:
		if len(data) != originalSize {
			return nil, fmt.Errorf("compress: stored size %d, declared %d", len(data), originalSize)
		}
		return data, nil

	case LZ4:
		out := make([]byte, originalSize)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("compress: lz4 decompress: %w", err)
		}
		if n != originalSize {
			return nil, fmt.Errorf("compress: lz4 produced %d bytes, declared %d", n, originalSize)
		}
		return out, nil

	case Zstd:
		out, err := zstdDecoder.DecodeAll(data, make([]byte, 0, originalSize))
		if err != nil {
			return nil, fmt.Errorf("compress: zstd decompress: %w", err)
		}
		if len(out) != originalSize {
			return nil, fmt.Errorf("compress: zstd produced %d bytes, declared %d", len(out), originalSize)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("compress: unknown tag %d", tag)
	}
}
