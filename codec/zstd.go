package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// One encoder and decoder are shared by every Zstd codec. EncodeAll and
// DecodeAll are safe for concurrent use.
var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return zstdEnc, zstdDec, zstdErr
}

// Zstd compresses the output of Inner. Snapshot payloads of JSON or msgpack
// values usually shrink several times over.
type Zstd[V any] struct {
	Inner Codec[V]
}

func (c Zstd[V]) Encode(v V) ([]byte, error) {
	raw, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	enc, _, err := zstdCoders()
	if err != nil {
		return nil, fmt.Errorf("codec: zstd: %w", err)
	}
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func (c Zstd[V]) Decode(b []byte) (V, error) {
	_, dec, err := zstdCoders()
	if err != nil {
		var zero V
		return zero, fmt.Errorf("codec: zstd: %w", err)
	}
	raw, err := dec.DecodeAll(b, nil)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("codec: zstd: %w", err)
	}
	return c.Inner.Decode(raw)
}
