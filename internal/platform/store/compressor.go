package store

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

type Compressor interface {
	Compress(val []byte) ([]byte, error)
	Decompress(val []byte) ([]byte, error)
	Close()
}

type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	once    sync.Once
}

func NewZstdCompressor() (*ZstdCompressor, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &ZstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func (z *ZstdCompressor) Compress(val []byte) ([]byte, error) {
	return z.encoder.EncodeAll(val, make([]byte, 0, len(val)/2)), nil
}

func (z *ZstdCompressor) Decompress(val []byte) ([]byte, error) {
	return z.decoder.DecodeAll(val, nil)
}

// Close releases the codec. Calling it more than once is safe.
func (z *ZstdCompressor) Close() {
	z.once.Do(func() {
		_ = z.encoder.Close()
		z.decoder.Close()
	})
}
