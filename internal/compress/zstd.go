package compress

import (
	"github.com/kipbackup/kip/internal/config"
	"github.com/klauspost/compress/zstd"
)

func init() { register(zstdCodec{}) }

// zstdCodec is the default codec, using a single-use
// klauspost/compress/zstd encoder per call.
type zstdCodec struct{}

func (zstdCodec) Algorithm() config.CompressAlg { return config.CompressZstd }

func (zstdCodec) Compress(src []byte, level config.CompressLevel) ([]byte, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstdEncoderLevel(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(src, make([]byte, 0, len(src))), nil
}

func (zstdCodec) Decompress(src []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(src, nil)
}

func zstdEncoderLevel(level config.CompressLevel) zstd.EncoderLevel {
	switch level {
	case config.LevelFastest:
		return zstd.SpeedFastest
	case config.LevelBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
