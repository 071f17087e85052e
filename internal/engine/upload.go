package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kipbackup/kip/internal/chunker"
	"github.com/kipbackup/kip/internal/compress"
	kcrypto "github.com/kipbackup/kip/internal/crypto"
	"github.com/kipbackup/kip/internal/job"
	"github.com/kipbackup/kip/internal/kerrors"
	"github.com/kipbackup/kip/internal/progress"
	"github.com/kipbackup/kip/internal/provider"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// cancelSignal is the slice of cancelToken's API the engine needs;
// job.Job never exports the concrete type, only Done()/Cancelled().
type cancelSignal interface {
	Done() <-chan struct{}
	Cancelled() bool
}

// Upload runs one upload attempt for j. secret is the raw
// encryption key for this job's chunks. The returned Run is nil (with
// a nil error) when enumeration found no changed files.
func (e *Engine) Upload(ctx context.Context, j *job.Job, secret []byte) (*job.Run, error) {
	ctx, span := e.Tracer.Start(ctx, "engine.Upload", trace.WithAttributes(attribute.String("job.name", j.Name)))
	defer span.End()

	runID := j.NextRunID()
	run := &job.Run{
		ID:      runID,
		Started: time.Now().UTC(),
		Status:  job.StatusInProgress,
	}
	j.PublishRun(run)
	cancelTok := j.BeginRun()
	defer j.EndRun()

	// Abort also cancels the context of in-flight provider calls and
	// retry waits, not only the per-file and per-chunk checks below.
	ctx, stopCtx := context.WithCancel(ctx)
	defer stopCtx()
	go func() {
		select {
		case <-cancelTok.Done():
			stopCtx()
		case <-ctx.Done():
		}
	}()

	files, warnings := j.Enumerate()
	for _, w := range warnings {
		run.Logs = append(run.Logs, fmt.Sprintf("%s | %s", time.Now().UTC().Format(time.RFC3339), w))
	}
	hadWarning := len(warnings) > 0

	sem := make(chan struct{}, e.Config.Parallelism)
	var mu sync.Mutex
	var wg sync.WaitGroup

	anyUploaded := false
	anyChanged := false
	anyFailed := false
	fileRuns := make([]job.FileRun, 0, len(files))

scan:
	for _, path := range files {
		select {
		case <-cancelTok.Done():
			break scan
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			fr, uploadedBytes, err := e.processFile(ctx, cancelTok, j, path, secret)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if kerrors.Is(err, kerrors.KindIO) {
					hadWarning = true
				} else {
					anyFailed = true
				}
				fr.Failed = true
				fr.FailError = err.Error()
				run.Logs = append(run.Logs, fmt.Sprintf("%s | file %q failed: %v", time.Now().UTC().Format(time.RFC3339), path, err))
			} else if fr.Changed {
				anyChanged = true
				if uploadedBytes > 0 {
					anyUploaded = true
				}
			}
			run.BytesUploaded += uploadedBytes
			fileRuns = append(fileRuns, fr)
		}(path)
	}
	wg.Wait()

	run.FilesChanged = fileRuns
	run.Finished = time.Now().UTC()
	run.ElapsedMillis = run.Finished.Sub(run.Started).Milliseconds()

	switch {
	case cancelTok.Cancelled():
		j.DiscardRun(runID)
		err := kerrors.New(kerrors.KindIO, "engine.Upload", fmt.Errorf("run %d aborted", runID))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	case anyFailed:
		run.Status = job.StatusERR
		span.SetStatus(codes.Error, "one or more files failed")
	case hadWarning:
		run.Status = job.StatusWARN
	default:
		run.Status = job.StatusOK
	}
	span.SetAttributes(
		attribute.Int("run.files_changed", len(fileRuns)),
		attribute.Int64("run.bytes_uploaded", run.BytesUploaded),
	)

	if !anyUploaded && !anyChanged {
		j.DiscardRun(runID)
		return nil, nil
	}

	j.CommitRun(run)
	j.RecomputeRefCounts()

	if e.Repository != nil {
		if err := e.Repository.Save(ctx, j); err != nil {
			wrapped := kerrors.New(kerrors.KindConfig, "engine.Upload", fmt.Errorf("persist job: %w", err))
			span.SetStatus(codes.Error, wrapped.Error())
			return run, wrapped
		}
	}
	return run, nil
}

// processFile runs the per-file pipeline: the unchanged-file fast
// path, chunking, and per-chunk dedup/upload.
func (e *Engine) processFile(ctx context.Context, cancelTok cancelSignal, j *job.Job, path string, secret []byte) (job.FileRun, int64, error) {
	ctx, span := e.Tracer.Start(ctx, "engine.processFile", trace.WithAttributes(attribute.String("file.path", path)))
	defer span.End()

	info, err := os.Stat(path)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return job.FileRun{Path: path}, 0, kerrors.New(kerrors.KindIO, "engine.processFile", err)
	}

	digest, err := quickDigest(path)
	if err != nil {
		return job.FileRun{Path: path}, 0, kerrors.New(kerrors.KindIO, "engine.processFile", err)
	}

	if prior, ok := j.MostRecentFileRun(path); ok &&
		prior.Size == info.Size() && prior.ModTime.Equal(info.ModTime()) && prior.Digest == digest {
		prior.Changed = false
		prior.Failed = false
		prior.FailError = ""
		return prior, 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return job.FileRun{Path: path}, 0, kerrors.New(kerrors.KindIO, "engine.processFile", err)
	}

	chunks := chunker.Chunk(data)
	fr := job.FileRun{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Digest:  digest,
		Changed: true,
	}

	var uploadedBytes int64
	for _, c := range chunks {
		select {
		case <-cancelTok.Done():
			return fr, uploadedBytes, kerrors.New(kerrors.KindIO, "engine.processFile", fmt.Errorf("cancelled"))
		default:
		}

		fc := job.FileChunk{Hash: c.Hash, Offset: int64(c.Offset), Length: int64(c.Length), End: int64(c.End)}
		fr.Chunks = append(fr.Chunks, fc)

		stored, err := e.ensureChunkUploaded(ctx, j, c.Hash, data[c.Offset:c.End], secret)
		if err != nil {
			return fr, uploadedBytes, err
		}
		uploadedBytes += stored

		e.Sink.Publish(progress.Message{FileChunk: &progress.FileChunkMsg{
			Path: path, Hash: c.Hash, Offset: int64(c.Offset), Length: int64(c.Length), End: int64(c.End),
		}})
		e.Sink.Publish(progress.Message{BytesUploaded: &progress.BytesUploadedMsg{StoredLen: stored}})
	}
	return fr, uploadedBytes, nil
}

// ensureChunkUploaded runs the dedup ladder: the job's own chunk index
// is the only free dedup hit. The provider's presence oracle (backed
// by the Redis cache when configured) only tells us the content
// exists somewhere remotely, not under what algorithm, so a hit there
// still pays for compress→encrypt→upload rather than indexing a
// record this process can't vouch for. Returns the number of stored
// bytes (0 only on a local chunk-index hit).
func (e *Engine) ensureChunkUploaded(ctx context.Context, j *job.Job, hash string, plaintext []byte, secret []byte) (int64, error) {
	unlock := e.lockChunk(hash)
	defer unlock()

	if _, ok := j.LookupChunk(hash); ok {
		return 0, nil
	}

	key := provider.ChunkKey(j.ID.String(), hash)
	present, err := provider.Contains(ctx, e.Provider, e.Cache, j.ID.String(), hash)
	if err != nil {
		return 0, kerrors.New(kerrors.KindProvider, "engine.ensureChunkUploaded", err)
	}
	if present {
		// A list_all lookup only recovers Key and Size (provider.ObjectInfo
		// carries no codec metadata), so the remote object's Algorithm
		// can't be synthesized without risking a stub ChunkRecord that
		// restore later decompresses wrong. Re-upload this job's own
		// ciphertext rather than trust the presence signal alone; Upload
		// overwrites, so this is safe and content-identical.
		e.Logger.WithFields(logrus.Fields{"hash": hash, "job": j.Name}).Debug("chunk already present remotely but unindexed locally, re-uploading for trustworthy metadata")
	}

	compressed, alg, err := compress.Compress(plaintext, j.Compress)
	if err != nil {
		return 0, err
	}
	ciphertext, err := kcrypto.Encrypt(compressed, secret)
	if err != nil {
		return 0, err
	}

	var storedLen int64
	err = withRetry(ctx, e.Config.Retry, func() error {
		if err := e.Provider.Upload(ctx, key, bytes.NewReader(ciphertext), int64(len(ciphertext))); err != nil {
			return kerrors.New(kerrors.KindProvider, "engine.ensureChunkUploaded", err)
		}
		storedLen = int64(len(ciphertext))
		return nil
	})
	if err != nil {
		return 0, err
	}

	j.IndexChunk(&job.ChunkRecord{Hash: hash, RemotePath: key, StoredLen: storedLen, Algorithm: alg, RefCount: 1})
	if e.Cache != nil {
		_ = e.Cache.Record(ctx, j.ID.String(), hash)
	}
	return storedLen, nil
}
