package statistic

import (
	"chatstat/internal/statistic/interfaces"
	"fmt"
	"github.com/klauspost/compress/zstd"
)

type ZstdCompression struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func (z *ZstdCompression) Compress(val []byte) ([]byte, error) {
	return z.encoder.EncodeAll(val, make([]byte, 0, len(val)/2)), nil
}

func (z *ZstdCompression) Decompress(val []byte) ([]byte, error) {
	return z.decoder.DecodeAll(val, nil)
}

func (z *ZstdCompression) Extension() string {
	return ".json.zst"
}

func (z *ZstdCompression) Close() {
	_ = z.encoder.Close()
	z.decoder.Close()
}

func NewZstdCompressor() (interfaces.CompressorInterface, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdCompression{encoder: encoder, decoder: decoder}, nil
}

// PlainCompression stores shard documents as plain JSON.
type PlainCompression struct{}

func (p *PlainCompression) Compress(val []byte) ([]byte, error)   { return val, nil }
func (p *PlainCompression) Decompress(val []byte) ([]byte, error) { return val, nil }
func (p *PlainCompression) Extension() string                     { return ".json" }
func (p *PlainCompression) Close()                                {}

// NewShardCompressor picks the shard file codec from the storage config.
func NewShardCompressor(compress bool) (interfaces.CompressorInterface, error) {
	if compress {
		return NewZstdCompressor()
	}
	return &PlainCompression{}, nil
}
