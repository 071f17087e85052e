package job

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kipbackup/kip/internal/config"
	"github.com/kipbackup/kip/internal/provider"
	"github.com/stretchr/testify/require"
)

func TestNewJobHasUniqueIDAndNeverRunStatus(t *testing.T) {
	j1 := New("a", config.ProviderConfig{})
	j2 := New("b", config.ProviderConfig{})
	require.NotEqual(t, j1.ID, j2.ID)
	require.Equal(t, StatusNeverRun, j1.LastStatus)
	require.Equal(t, 0, j1.TotalRuns)
}

func TestAddRootsDeduplicates(t *testing.T) {
	j := New("test", config.ProviderConfig{})
	j.AddRoots("/a", "/b", "/a")
	require.Equal(t, []string{"/a", "/b"}, j.Roots)
}

func TestRemoveRoots(t *testing.T) {
	j := New("test", config.ProviderConfig{})
	j.AddRoots("/a", "/b", "/c")
	j.RemoveRoots("/b")
	require.Equal(t, []string{"/a", "/c"}, j.Roots)
}

func TestNextRunIDIsMonotonic(t *testing.T) {
	j := New("test", config.ProviderConfig{})
	require.Equal(t, 1, j.NextRunID())

	j.CommitRun(&Run{ID: 1, Status: StatusOK})
	require.Equal(t, 2, j.NextRunID())

	j.CommitRun(&Run{ID: 2, Status: StatusOK})
	require.Equal(t, 3, j.NextRunID())
}

func TestCommitRunSetsFirstRunOnlyOnce(t *testing.T) {
	j := New("test", config.ProviderConfig{})
	first := mustTime(t, "2026-01-01T00:00:00Z")
	second := mustTime(t, "2026-01-02T00:00:00Z")

	j.CommitRun(&Run{ID: 1, Status: StatusOK, Finished: first})
	require.Equal(t, first, j.FirstRun)

	j.CommitRun(&Run{ID: 2, Status: StatusOK, Finished: second})
	require.Equal(t, first, j.FirstRun)
	require.Equal(t, second, j.LastRun)
}

func TestDiscardRunDoesNotAffectTotalRuns(t *testing.T) {
	j := New("test", config.ProviderConfig{})
	j.PublishRun(&Run{ID: 1, Status: StatusInProgress})
	require.Equal(t, 0, j.TotalRuns)
	_, ok := j.RunByID(1)
	require.True(t, ok)

	j.DiscardRun(1)
	_, ok = j.RunByID(1)
	require.False(t, ok)
	require.Equal(t, 0, j.TotalRuns)
}

func TestMostRecentFileRunPicksHighestRunID(t *testing.T) {
	j := New("test", config.ProviderConfig{})
	j.CommitRun(&Run{ID: 1, Status: StatusOK, FilesChanged: []FileRun{{Path: "/a", Size: 1}}})
	j.CommitRun(&Run{ID: 2, Status: StatusOK, FilesChanged: []FileRun{{Path: "/a", Size: 2}}})

	fr, ok := j.MostRecentFileRun("/a")
	require.True(t, ok)
	require.Equal(t, int64(2), fr.Size)
}

func TestAbortOnIdleJobIsNoop(t *testing.T) {
	j := New("test", config.ProviderConfig{})
	require.NotPanics(t, j.Abort)
}

func TestAbortCancelsInFlightRunToken(t *testing.T) {
	j := New("test", config.ProviderConfig{})
	tok := j.BeginRun()
	require.False(t, tok.Cancelled())

	j.Abort()
	require.True(t, tok.Cancelled())
	j.EndRun()
}

func TestPauseResume(t *testing.T) {
	j := New("test", config.ProviderConfig{})
	require.False(t, j.IsPaused())
	j.Pause()
	require.True(t, j.IsPaused())
	j.Resume()
	require.False(t, j.IsPaused())
}

func TestEnumerateFollowsSymlinkedDirectories(t *testing.T) {
	dir := t.TempDir()
	target := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, "linked.txt"), []byte("y"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "alias")))

	j := New("test", config.ProviderConfig{})
	j.AddRoots(dir)

	files, warnings := j.Enumerate()
	require.Empty(t, warnings)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	require.Contains(t, names, "linked.txt", "a symlinked directory must be traversed, not recorded as a file")
	require.NotContains(t, names, "alias", "a symlinked directory is not itself a file entry")
}

func TestEnumerateDeduplicatesSymlinkCycles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "file.txt"), []byte("x"), 0o644))

	cycleLink := filepath.Join(sub, "loop")
	require.NoError(t, os.Symlink(sub, cycleLink))

	j := New("test", config.ProviderConfig{})
	j.AddRoots(dir)

	files, warnings := j.Enumerate()
	require.Empty(t, warnings)

	seen := make(map[string]int)
	for _, f := range files {
		seen[filepath.Base(f)]++
	}
	require.Equal(t, 1, seen["file.txt"], "the cycle's canonical directory was already visited, so it must not be re-traversed")
}

func TestEnumerateWarnsOnMissingRoot(t *testing.T) {
	j := New("test", config.ProviderConfig{})
	j.AddRoots("/does/not/exist/kip-test")

	files, warnings := j.Enumerate()
	require.Empty(t, files)
	require.Len(t, warnings, 1)
}

func TestEnumerateRespectsExcludeGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.tmp"), []byte("x"), 0o644))

	j := New("test", config.ProviderConfig{})
	j.AddRoots(dir)
	j.SetExcludeGlobs([]string{"*.tmp"})

	files, _ := j.Enumerate()
	require.Len(t, files, 1)
	require.Equal(t, "keep.txt", filepath.Base(files[0]))
}

func TestGetFilesAmtCountsOnlyRegularFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subdir", "b.txt"), []byte("x"), 0o644))

	j := New("test", config.ProviderConfig{})
	j.AddRoots(dir)
	require.Equal(t, 2, j.GetFilesAmt())
}

type fakeProvider struct {
	deleted []string
}

func (f *fakeProvider) Kind() string { return "fake" }
func (f *fakeProvider) Upload(ctx context.Context, key string, src io.Reader, size int64) error {
	return nil
}
func (f *fakeProvider) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, nil
}
func (f *fakeProvider) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}
func (f *fakeProvider) Contains(ctx context.Context, key string) (bool, error) { return false, nil }
func (f *fakeProvider) ListAll(ctx context.Context, prefix string) ([]provider.ObjectInfo, error) {
	return nil, nil
}

func TestRemoveRunPurgesOrphanChunksOnly(t *testing.T) {
	j := New("test", config.ProviderConfig{})
	j.IndexChunk(&ChunkRecord{Hash: "shared", RemotePath: "job/chunks/shared.chunk"})
	j.IndexChunk(&ChunkRecord{Hash: "orphan", RemotePath: "job/chunks/orphan.chunk"})

	j.CommitRun(&Run{ID: 1, Status: StatusOK, FilesChanged: []FileRun{
		{Path: "/a", Chunks: []FileChunk{{Hash: "shared"}, {Hash: "orphan"}}},
	}})
	j.CommitRun(&Run{ID: 2, Status: StatusOK, FilesChanged: []FileRun{
		{Path: "/b", Chunks: []FileChunk{{Hash: "shared"}}},
	}})
	j.RecomputeRefCounts()

	p := &fakeProvider{}
	require.NoError(t, j.RemoveRun(context.Background(), p, 1, true))

	require.Equal(t, []string{"job/chunks/orphan.chunk"}, p.deleted)
	_, sharedStillIndexed := j.LookupChunk("shared")
	require.True(t, sharedStillIndexed)
	_, orphanStillIndexed := j.LookupChunk("orphan")
	require.False(t, orphanStillIndexed)
}

func TestRemoveRunWithoutPurgeKeepsChunkIndexIntact(t *testing.T) {
	j := New("test", config.ProviderConfig{})
	j.IndexChunk(&ChunkRecord{Hash: "a", RemotePath: "job/chunks/a.chunk"})
	j.CommitRun(&Run{ID: 1, Status: StatusOK, FilesChanged: []FileRun{
		{Path: "/a", Chunks: []FileChunk{{Hash: "a"}}},
	}})

	p := &fakeProvider{}
	require.NoError(t, j.RemoveRun(context.Background(), p, 1, false))
	require.Empty(t, p.deleted)
	_, ok := j.LookupChunk("a")
	require.True(t, ok)
}

func TestRemoveRunUnknownRunErrors(t *testing.T) {
	j := New("test", config.ProviderConfig{})
	err := j.RemoveRun(context.Background(), &fakeProvider{}, 99, false)
	require.Error(t, err)
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return parsed
}
