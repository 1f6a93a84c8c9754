// Package compress wraps zstd for object payloads.
//
// Every payload gets a one byte tag so that incompressible data can be
// stored raw and still be read back by the same code path.
package compress

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

type Tag uint8

const (
	TagNone Tag = 0
	TagZstd Tag = 1
)

func (t Tag) String() string {
	switch t {
	case TagNone:
		return "none"
	case TagZstd:
		return "zstd"
	}
	return fmt.Sprintf("unknown(%d)", t)
}

var ErrCorrupt = errors.New("compressed payload is corrupt")

// zstd.Encoder / zstd.Decoder 并发安全，全局复用避免重复初始化
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// Pack 返回 [tag][payload]。enabled=false 或压缩后没有变小时用 TagNone
func Pack(data []byte, enabled bool) []byte {
	if enabled && len(data) > 0 {
		compressed := zstdEncoder.EncodeAll(data, make([]byte, 1, len(data)/2+1))
		if len(compressed) < len(data)+1 {
			compressed[0] = byte(TagZstd)
			return compressed
		}
	}
	out := make([]byte, 1+len(data))
	out[0] = byte(TagNone)
	copy(out[1:], data)
	return out
}

// Unpack 是 Pack 的逆操作
func Unpack(packed []byte) ([]byte, error) {
	if len(packed) == 0 {
		return nil, ErrCorrupt
	}
	switch Tag(packed[0]) {
	case TagNone:
		return packed[1:], nil
	case TagZstd:
		out, err := zstdDecoder.DecodeAll(packed[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown tag %d", ErrCorrupt, packed[0])
}
