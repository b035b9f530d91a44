package store

import (
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

const (
	compressionNone = "none"
	compressionZstd = "zstd"
)

// The encoder and decoder are safe for concurrent EncodeAll/DecodeAll use
// and are shared across calls.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("zstd encoder: %v", err))
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("zstd decoder: %v", err))
	}
}

// HashContent returns the hex BLAKE3-256 digest of data.
func HashContent(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// encodeBlob compresses data with zstd when that makes it smaller.
func encodeBlob(data []byte) (payload []byte, compression string) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return data, compressionNone
	}
	return compressed, compressionZstd
}

func decodeBlob(payload []byte, compression string, size int) ([]byte, error) {
	switch compression {
	case compressionNone:
		if len(payload) != size {
			return nil, fmt.Errorf("blob size %d does not match expected %d", len(payload), size)
		}
		return payload, nil
	case compressionZstd:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown blob compression %q", compression)
	}
}
