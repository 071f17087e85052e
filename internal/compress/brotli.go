package compress

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/kipbackup/kip/internal/config"
)

func init() { register(brotliCodec{}) }

// brotliCodec is grounded on gastrolog's internal/server/compress.go and
// cmd/compress-assets/main.go, both of which drive andybalholm/brotli
// through NewWriterLevel.
type brotliCodec struct{}

func (brotliCodec) Algorithm() config.CompressAlg { return config.CompressBrotli }

func (brotliCodec) Compress(src []byte, level config.CompressLevel) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotliLevel(level))
	if _, err := w.Write(src); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (brotliCodec) Decompress(src []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(src)))
}

func brotliLevel(level config.CompressLevel) int {
	switch level {
	case config.LevelFastest:
		return brotli.BestSpeed
	case config.LevelBest:
		return brotli.BestCompression
	default:
		return brotli.DefaultCompression
	}
}
