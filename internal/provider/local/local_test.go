package local

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUploadDownloadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, 0)
	ctx := context.Background()

	data := []byte("chunk payload")
	require.NoError(t, b.Upload(ctx, "job-1/chunks/abc.chunk", bytes.NewReader(data), int64(len(data))))

	rc, err := b.Download(ctx, "job-1/chunks/abc.chunk")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestContainsReflectsPresence(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, 0)
	ctx := context.Background()

	present, err := b.Contains(ctx, "job-1/chunks/missing.chunk")
	require.NoError(t, err)
	require.False(t, present)

	data := []byte("x")
	require.NoError(t, b.Upload(ctx, "job-1/chunks/here.chunk", bytes.NewReader(data), 1))

	present, err = b.Contains(ctx, "job-1/chunks/here.chunk")
	require.NoError(t, err)
	require.True(t, present)
}

func TestDeleteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, 0)
	ctx := context.Background()

	require.NoError(t, b.Delete(ctx, "job-1/chunks/nonexistent.chunk"))

	data := []byte("x")
	require.NoError(t, b.Upload(ctx, "job-1/chunks/a.chunk", bytes.NewReader(data), 1))
	require.NoError(t, b.Delete(ctx, "job-1/chunks/a.chunk"))

	present, err := b.Contains(ctx, "job-1/chunks/a.chunk")
	require.NoError(t, err)
	require.False(t, present)
}

func TestListAllEnumeratesUnderPrefix(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, 0)
	ctx := context.Background()

	for _, name := range []string{"job-1/chunks/a.chunk", "job-1/chunks/b.chunk", "job-2/chunks/c.chunk"} {
		require.NoError(t, b.Upload(ctx, name, bytes.NewReader([]byte("x")), 1))
	}

	objs, err := b.ListAll(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, objs, 2)
}

func TestDownloadAboveMmapThresholdUsesMmapPath(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, 8) // tiny threshold forces the mmap path
	ctx := context.Background()

	data := bytes.Repeat([]byte("y"), 64)
	require.NoError(t, b.Upload(ctx, "job-1/chunks/big.chunk", bytes.NewReader(data), int64(len(data))))

	rc, err := b.Download(ctx, "job-1/chunks/big.chunk")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestStripHashFromPath(t *testing.T) {
	require.Equal(t, "deadbeef", StripHashFromPath(filepath.Join("job-1", "chunks", "deadbeef.chunk")))
}

func TestUploadCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, 0)
	ctx := context.Background()

	require.NoError(t, b.Upload(ctx, "deep/nested/path/x.chunk", bytes.NewReader([]byte("z")), 1))
	_, err := os.Stat(filepath.Join(dir, "deep", "nested", "path", "x.chunk"))
	require.NoError(t, err)
}
