package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// quickDigestSampleSize bounds how much of a file quickDigest reads,
// keeping the unchanged-file fast path cheap even for very large
// files: a full content hash would defeat the purpose of skipping
// re-chunking.
const quickDigestSampleSize = 64 * 1024

// quickDigest hashes up to the first quickDigestSampleSize bytes of the
// file at path, used alongside size and mtime to detect whether a file
// changed since its last recorded FileRun.
func quickDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyN(h, f, quickDigestSampleSize); err != nil && err != io.EOF {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
