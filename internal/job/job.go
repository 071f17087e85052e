// Package job implements the persisted data model: Job, Run, FileRun,
// FileChunk, and ChunkRecord, plus the job-level operations (create,
// rename, add_roots, remove_roots, list_status, get_files_amt).
package job

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kipbackup/kip/internal/config"
)

// Status is the outcome of one run.
type Status string

const (
	StatusOK         Status = "OK"
	StatusERR        Status = "ERR"
	StatusWARN       Status = "WARN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusNeverRun   Status = "NEVER_RUN"
)

// FileChunk is a chunk reference embedded in a FileRun: the content
// hash, offset, and length within its source file. FileChunk is never
// the chunk payload itself.
type FileChunk struct {
	Hash   string `yaml:"hash" json:"hash"`
	Offset int64  `yaml:"offset" json:"offset"`
	Length int64  `yaml:"length" json:"length"`
	End    int64  `yaml:"end" json:"end"`
}

// FileRun is the record of one file's chunk composition within one Run.
type FileRun struct {
	Path      string      `yaml:"path" json:"path"`
	Size      int64       `yaml:"size" json:"size"`
	ModTime   time.Time   `yaml:"mod_time" json:"mod_time"`
	Digest    string      `yaml:"digest" json:"digest"`
	Chunks    []FileChunk `yaml:"chunks" json:"chunks"`
	Changed   bool        `yaml:"changed" json:"changed"`
	Failed    bool        `yaml:"failed" json:"failed"`
	FailError string      `yaml:"fail_error,omitempty" json:"fail_error,omitempty"`
}

// ChunkRecord is stored in the job's chunk index: hash, remote path
// returned by the provider on first upload, stored byte length, and a
// reference count across FileRuns.
type ChunkRecord struct {
	Hash       string `yaml:"hash" json:"hash"`
	RemotePath string `yaml:"remote_path" json:"remote_path"`
	StoredLen  int64  `yaml:"stored_len" json:"stored_len"`
	Algorithm  config.CompressAlg `yaml:"algorithm" json:"algorithm"`
	RefCount   int    `yaml:"ref_count" json:"ref_count"`
}

// Run is a numbered attempt within a job.
type Run struct {
	ID            int       `yaml:"id" json:"id"`
	Started       time.Time `yaml:"started" json:"started"`
	Finished      time.Time `yaml:"finished" json:"finished"`
	ElapsedMillis int64     `yaml:"elapsed_millis" json:"elapsed_millis"`
	BytesUploaded int64     `yaml:"bytes_uploaded" json:"bytes_uploaded"`
	FilesChanged  []FileRun `yaml:"files_changed" json:"files_changed"`
	Status        Status    `yaml:"status" json:"status"`
	Logs          []string  `yaml:"logs" json:"logs"`
}

// Job is a named, UUID-identified backup set.
type Job struct {
	mu sync.RWMutex

	ID         uuid.UUID             `yaml:"id" json:"id"`
	Name       string                `yaml:"name" json:"name"`
	Provider   config.ProviderConfig `yaml:"provider" json:"provider"`
	Compress   config.CompressOptions `yaml:"compress" json:"compress"`
	Roots      []string              `yaml:"roots" json:"roots"`
	ExcludeGlobs []string            `yaml:"exclude_globs,omitempty" json:"exclude_globs,omitempty"`

	Runs      map[int]*Run           `yaml:"runs" json:"runs"`
	ChunkIndex map[string]*ChunkRecord `yaml:"chunk_index" json:"chunk_index"`

	Created    time.Time `yaml:"created" json:"created"`
	FirstRun   time.Time `yaml:"first_run" json:"first_run"`
	LastRun    time.Time `yaml:"last_run" json:"last_run"`
	TotalRuns  int       `yaml:"total_runs" json:"total_runs"`
	LastStatus Status    `yaml:"last_status" json:"last_status"`

	Paused bool `yaml:"paused" json:"paused"`

	cancel *cancelToken `yaml:"-" json:"-"`
}

// New creates a job with default options.
func New(name string, providerCfg config.ProviderConfig) *Job {
	return &Job{
		ID:         uuid.New(),
		Name:       name,
		Provider:   providerCfg,
		Compress:   config.DefaultCompressOptions(),
		Runs:       make(map[int]*Run),
		ChunkIndex: make(map[string]*ChunkRecord),
		Created:    time.Now().UTC(),
		LastStatus: StatusNeverRun,
	}
}

// Rename changes the job's display name in place.
func (j *Job) Rename(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Name = name
}

// AddRoots appends new roots as given, skipping duplicates already
// present. Canonicalization is the caller's
// responsibility via filepath.Abs/EvalSymlinks before calling
// AddRoots.
func (j *Job) AddRoots(roots ...string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	existing := make(map[string]bool, len(j.Roots))
	for _, r := range j.Roots {
		existing[r] = true
	}
	for _, r := range roots {
		if !existing[r] {
			j.Roots = append(j.Roots, r)
			existing[r] = true
		}
	}
}

// RemoveRoots drops the given roots from the job's root set.
func (j *Job) RemoveRoots(roots ...string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	drop := make(map[string]bool, len(roots))
	for _, r := range roots {
		drop[r] = true
	}
	kept := j.Roots[:0:0]
	for _, r := range j.Roots {
		if !drop[r] {
			kept = append(kept, r)
		}
	}
	j.Roots = kept
}

// StatusSummary is a point-in-time summary snapshot of the job.
type StatusSummary struct {
	Name       string
	TotalRuns  int
	LastStatus Status
	LastRun    time.Time
	FirstRun   time.Time
}

func (j *Job) ListStatus() StatusSummary {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return StatusSummary{
		Name:       j.Name,
		TotalRuns:  j.TotalRuns,
		LastStatus: j.LastStatus,
		LastRun:    j.LastRun,
		FirstRun:   j.FirstRun,
	}
}

// RunByID returns the Run with the given id, if any.
func (j *Job) RunByID(id int) (*Run, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	r, ok := j.Runs[id]
	return r, ok
}

// PublishRun inserts an in-progress Run into the job so a concurrent
// status query sees live progress.
func (j *Job) PublishRun(r *Run) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Runs[r.ID] = r
}

// LookupChunk returns the ChunkRecord for hash, if already indexed.
func (j *Job) LookupChunk(hash string) (*ChunkRecord, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	rec, ok := j.ChunkIndex[hash]
	return rec, ok
}

// IndexChunk inserts or updates a ChunkRecord in the job's chunk index.
func (j *Job) IndexChunk(rec *ChunkRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ChunkIndex[rec.Hash] = rec
}

// MostRecentFileRun returns the most recent FileRun recorded for path
// across all committed runs, used by the upload pipeline's
// unchanged-file fast path.
func (j *Job) MostRecentFileRun(path string) (FileRun, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var best FileRun
	var bestRunID int = -1
	for id, r := range j.Runs {
		for _, fr := range r.FilesChanged {
			if fr.Path == path && id > bestRunID {
				best = fr
				bestRunID = id
			}
		}
	}
	return best, bestRunID >= 0
}

// CommitRun inserts a completed Run.
func (j *Job) CommitRun(r *Run) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Runs[r.ID] = r
	j.TotalRuns++
	j.LastRun = r.Finished
	if j.FirstRun.IsZero() {
		j.FirstRun = r.Finished
	}
	j.LastStatus = r.Status
}

// DiscardRun removes an in-progress Run published via PublishRun
// without committing it (used when a run finds no file changes).
func (j *Job) DiscardRun(id int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.Runs, id)
}

// NextRunID returns the id the next Run should use.
func (j *Job) NextRunID() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.TotalRuns + 1
}
