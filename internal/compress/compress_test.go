package compress

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/kipbackup/kip/internal/config"
	"github.com/stretchr/testify/require"
)

func sampleData(t *testing.T) []byte {
	t.Helper()
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 500)
	extra := make([]byte, 128)
	_, err := rand.Read(extra)
	require.NoError(t, err)
	return append(data, extra...)
}

func TestCodecRoundtripAllAlgorithmsAllLevels(t *testing.T) {
	algs := []config.CompressAlg{config.CompressZstd, config.CompressGzip, config.CompressBrotli, config.CompressLzma}
	levels := []config.CompressLevel{config.LevelFastest, config.LevelDefault, config.LevelBest}
	data := sampleData(t)

	for _, alg := range algs {
		for _, level := range levels {
			c, err := Get(alg)
			require.NoError(t, err)

			compressed, err := c.Compress(data, level)
			require.NoError(t, err, "alg=%s level=%s", alg, level)

			decompressed, err := c.Decompress(compressed)
			require.NoError(t, err, "alg=%s level=%s", alg, level)
			require.Equal(t, data, decompressed, "alg=%s level=%s", alg, level)
		}
	}
}

func TestCompressDisabledPassesThrough(t *testing.T) {
	data := sampleData(t)
	out, alg, err := Compress(data, config.CompressOptions{Enabled: false})
	require.NoError(t, err)
	require.Equal(t, config.CompressNone, alg)
	require.Equal(t, data, out)
}

func TestCompressRecordsAlgorithmForSelfDescribingDecompress(t *testing.T) {
	data := sampleData(t)
	opts := config.CompressOptions{Enabled: true, Alg: config.CompressBrotli, Level: config.LevelBest}

	compressed, alg, err := Compress(data, opts)
	require.NoError(t, err)
	require.Equal(t, config.CompressBrotli, alg)

	out, err := Decompress(compressed, alg)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestDecompressNoneIsPassthrough(t *testing.T) {
	data := sampleData(t)
	out, err := Decompress(data, config.CompressNone)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestGetUnknownAlgorithmErrors(t *testing.T) {
	_, err := Get(config.CompressAlg("unknown"))
	require.Error(t, err)
}

func TestCompressedSmallerThanOriginalForRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 10_000)
	for _, alg := range []config.CompressAlg{config.CompressZstd, config.CompressGzip, config.CompressBrotli, config.CompressLzma} {
		c, err := Get(alg)
		require.NoError(t, err)
		compressed, err := c.Compress(data, config.LevelDefault)
		require.NoError(t, err)
		require.Less(t, len(compressed), len(data), "alg=%s", alg)
	}
}
