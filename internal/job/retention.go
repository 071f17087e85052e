package job

import (
	"context"
	"fmt"

	"github.com/kipbackup/kip/internal/kerrors"
	"github.com/kipbackup/kip/internal/provider"
)

// RemoveRun deletes the target Run from job.runs. When purge is true,
// every ChunkRecord whose reference count (after removal) reaches
// zero is deleted from the provider and dropped from the chunk index.
// Idempotent: a provider.Delete on an already-absent blob is success
// (enforced by each Provider implementation).
func (j *Job) RemoveRun(ctx context.Context, p provider.Provider, runID int, purge bool) error {
	j.mu.Lock()
	if _, ok := j.Runs[runID]; !ok {
		j.mu.Unlock()
		return kerrors.New(kerrors.KindConfig, "job.RemoveRun", fmt.Errorf("run %d not found", runID))
	}
	delete(j.Runs, runID)

	var toPurge []string
	if purge {
		refCounts := j.referenceCountsLocked()
		for hash, count := range refCounts {
			if count == 0 {
				if rec, ok := j.ChunkIndex[hash]; ok {
					toPurge = append(toPurge, rec.RemotePath)
					delete(j.ChunkIndex, hash)
				}
			}
		}
	}
	j.mu.Unlock()

	if !purge {
		return nil
	}
	for _, remotePath := range toPurge {
		if err := p.Delete(ctx, remotePath); err != nil {
			return kerrors.New(kerrors.KindProvider, "job.RemoveRun", fmt.Errorf("delete orphan chunk %s: %w", remotePath, err))
		}
	}
	return nil
}

// referenceCountsLocked recomputes each indexed chunk's reference count
// from the current Runs set. Callers must hold j.mu.
func (j *Job) referenceCountsLocked() map[string]int {
	counts := make(map[string]int, len(j.ChunkIndex))
	for hash := range j.ChunkIndex {
		counts[hash] = 0
	}
	for _, r := range j.Runs {
		for _, fr := range r.FilesChanged {
			for _, c := range fr.Chunks {
				counts[c.Hash]++
			}
		}
	}
	return counts
}

// RecomputeRefCounts refreshes every ChunkRecord's RefCount field from
// the current Runs set, used after a run commits or a GC sweep removes
// a run.
func (j *Job) RecomputeRefCounts() {
	j.mu.Lock()
	defer j.mu.Unlock()
	counts := j.referenceCountsLocked()
	for hash, rec := range j.ChunkIndex {
		rec.RefCount = counts[hash]
	}
}
