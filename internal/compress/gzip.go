package compress

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/kipbackup/kip/internal/config"
)

func init() { register(gzipCodec{}) }

// gzipCodec offers a widely-compatible fallback codec using only the
// standard library; gzip has no domain-specific ratio/speed advantage
// over the other codecs, so there's no reason to reach for a
// third-party implementation here.
type gzipCodec struct{}

func (gzipCodec) Algorithm() config.CompressAlg { return config.CompressGzip }

func (gzipCodec) Compress(src []byte, level config.CompressLevel) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzipLevel(level))
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decompress(src []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func gzipLevel(level config.CompressLevel) int {
	switch level {
	case config.LevelFastest:
		return gzip.BestSpeed
	case config.LevelBest:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}
