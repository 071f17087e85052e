package drive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkNameStripsNamespacePrefix(t *testing.T) {
	require.Equal(t, "deadbeef.chunk", chunkName("job-1/chunks/deadbeef.chunk"))
	require.Equal(t, "deadbeef.chunk", chunkName("deadbeef.chunk"))
}

func TestStripHashFromName(t *testing.T) {
	require.Equal(t,
		"001d46082763b930e5b9f0c52d16841b443bfbcd52af6cd475cb0182548da33a",
		StripHashFromName("001d46082763b930e5b9f0c52d16841b443bfbcd52af6cd475cb0182548da33a.chunk"),
	)
}

func TestStripHashFromNameNoExtension(t *testing.T) {
	require.Equal(t, "plainname", StripHashFromName("plainname"))
}
