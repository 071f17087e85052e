package smb

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSMBBackendKindIsDistinctFromLocal(t *testing.T) {
	b := New(t.TempDir(), "share1", 0)
	require.Equal(t, "smb", b.Kind())
}

func TestSMBBackendUploadDownloadRoundtrip(t *testing.T) {
	b := New(t.TempDir(), "share1", 0)
	ctx := context.Background()

	data := []byte("share payload")
	require.NoError(t, b.Upload(ctx, "job-1/chunks/abc.chunk", bytes.NewReader(data), int64(len(data))))

	rc, err := b.Download(ctx, "job-1/chunks/abc.chunk")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestSMBBackendWithEmptyShareUsesMountPathDirectly(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, "", 0)
	ctx := context.Background()

	require.NoError(t, b.Upload(ctx, "job-1/chunks/x.chunk", bytes.NewReader([]byte("x")), 1))
	present, err := b.Contains(ctx, "job-1/chunks/x.chunk")
	require.NoError(t, err)
	require.True(t, present)
}
