// Package compress implements the pluggable per-chunk compression codecs:
// each chunk is compressed independently before encryption, and the
// chosen algorithm is recorded on the ChunkRecord so decompression is
// self-describing and never depends on job-level configuration.
package compress

import (
	"fmt"

	"github.com/kipbackup/kip/internal/config"
	"github.com/kipbackup/kip/internal/kerrors"
)

// Codec compresses and decompresses chunk payloads for one algorithm.
type Codec interface {
	// Algorithm returns the config.CompressAlg this codec implements.
	Algorithm() config.CompressAlg

	// Compress returns src compressed at the given quality level.
	Compress(src []byte, level config.CompressLevel) ([]byte, error)

	// Decompress reverses Compress. It does not need the original level:
	// every supported algorithm here self-describes its parameters in
	// the compressed stream.
	Decompress(src []byte) ([]byte, error)
}

var registry = map[config.CompressAlg]Codec{}

func register(c Codec) {
	registry[c.Algorithm()] = c
}

// Get returns the codec registered for alg.
func Get(alg config.CompressAlg) (Codec, error) {
	c, ok := registry[alg]
	if !ok {
		return nil, kerrors.New(kerrors.KindConfig, "compress.Get", fmt.Errorf("unknown compression algorithm %q", alg))
	}
	return c, nil
}

// Compress compresses src with the named algorithm at the given level.
// If opts.Enabled is false, src is returned unchanged and the returned
// algorithm is config.CompressNone, so callers can still record a
// self-describing ChunkRecord.
func Compress(src []byte, opts config.CompressOptions) ([]byte, config.CompressAlg, error) {
	if !opts.Enabled {
		return src, config.CompressNone, nil
	}
	c, err := Get(opts.Alg)
	if err != nil {
		return nil, "", err
	}
	out, err := c.Compress(src, opts.Level)
	if err != nil {
		return nil, "", kerrors.New(kerrors.KindIO, "compress.Compress", err)
	}
	return out, opts.Alg, nil
}

// Decompress reverses Compress for the algorithm recorded on a ChunkRecord.
func Decompress(src []byte, alg config.CompressAlg) ([]byte, error) {
	if alg == config.CompressNone || alg == "" {
		return src, nil
	}
	c, err := Get(alg)
	if err != nil {
		return nil, err
	}
	out, err := c.Decompress(src)
	if err != nil {
		return nil, kerrors.New(kerrors.KindIntegrity, "compress.Decompress", err)
	}
	return out, nil
}
