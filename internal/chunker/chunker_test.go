package chunker

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkEmpty(t *testing.T) {
	require.Empty(t, Chunk(nil))
	require.Empty(t, Chunk([]byte{}))
}

func TestChunkSmallInputSingleChunk(t *testing.T) {
	data := bytes.Repeat([]byte{'a'}, MinSize-1)
	chunks := Chunk(data)
	require.Len(t, chunks, 1)
	require.Equal(t, 0, chunks[0].Offset)
	require.Equal(t, len(data), chunks[0].Length)
	require.Equal(t, len(data), chunks[0].End)
}

func TestChunkReassemblesExactly(t *testing.T) {
	data := make([]byte, 5*AvgSize)
	_, err := rand.Read(data)
	require.NoError(t, err)

	chunks := Chunk(data)
	require.NotEmpty(t, chunks)

	var reassembled []byte
	for _, c := range chunks {
		reassembled = append(reassembled, data[c.Offset:c.End]...)
	}
	require.Equal(t, data, reassembled)
}

func TestChunkDeterministic(t *testing.T) {
	data := make([]byte, 3*AvgSize)
	_, err := rand.Read(data)
	require.NoError(t, err)

	first := Chunk(data)
	second := Chunk(data)
	require.Equal(t, first, second)
}

func TestChunkBoundedSizes(t *testing.T) {
	data := make([]byte, 8*AvgSize)
	_, err := rand.Read(data)
	require.NoError(t, err)

	chunks := Chunk(data)
	for i, c := range chunks {
		require.LessOrEqual(t, c.Length, MaxSize)
		if i < len(chunks)-1 {
			require.GreaterOrEqual(t, c.Length, MinSize)
		}
	}
}

func TestChunkLocalEditOnlyAffectsLocalChunks(t *testing.T) {
	data := make([]byte, 10*AvgSize)
	_, err := rand.Read(data)
	require.NoError(t, err)

	original := Chunk(data)

	edited := append([]byte(nil), data...)
	mid := len(edited) / 2
	edited[mid] ^= 0xFF

	modified := Chunk(edited)

	// Most chunk hashes before the edit region should be unaffected.
	var untouchedPrefix int
	for i := 0; i < len(original) && i < len(modified); i++ {
		if original[i].Hash != modified[i].Hash {
			break
		}
		untouchedPrefix++
	}
	require.Greater(t, untouchedPrefix, 0)
}
