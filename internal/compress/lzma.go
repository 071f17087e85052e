package compress

import (
	"bytes"
	"io"

	"github.com/kipbackup/kip/internal/config"
	"github.com/ulikunitz/xz/lzma"
)

func init() { register(lzmaCodec{}) }

// lzmaCodec offers the highest compression ratio at the cost of speed,
// picked up from the wider pack's backup tooling (ulikunitz/xz), which
// favors lzma for archival-grade ratios over zstd/gzip's speed bias.
type lzmaCodec struct{}

func (lzmaCodec) Algorithm() config.CompressAlg { return config.CompressLzma }

func (lzmaCodec) Compress(src []byte, level config.CompressLevel) ([]byte, error) {
	var buf bytes.Buffer
	cfg := lzma.Writer2Config{}
	if level == config.LevelFastest {
		cfg.Properties = &lzma.Properties{LC: 3, LP: 0, PB: 2}
	}
	w, err := cfg.NewWriter2(&buf)
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

func (lzmaCodec) Decompress(src []byte) ([]byte, error) {
	r, err := lzma.NewReader2(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
