package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kipbackup/kip/internal/compress"
	kcrypto "github.com/kipbackup/kip/internal/crypto"
	"github.com/kipbackup/kip/internal/job"
	"github.com/kipbackup/kip/internal/kerrors"
	"github.com/kipbackup/kip/internal/progress"
)

// Restore reassembles every file recorded in run runID of j, writing
// each to its original path. secret is the same job encryption key
// used at upload time. A single file's failure does not
// abort the others: it is logged, the file is skipped, and the returned
// Status is StatusERR. Per-file outcomes are not returned to the caller.
func (e *Engine) Restore(ctx context.Context, j *job.Job, runID int, secret []byte) (job.Status, error) {
	run, ok := j.RunByID(runID)
	if !ok {
		return job.StatusERR, kerrors.New(kerrors.KindUsage, "engine.Restore", fmt.Errorf("run %d not found", runID))
	}

	anyFailed := false
	for i := range run.FilesChanged {
		fr := run.FilesChanged[i]
		if err := ctx.Err(); err != nil {
			return job.StatusERR, kerrors.New(kerrors.KindIO, "engine.Restore", err)
		}
		if err := e.restoreFile(ctx, j, fr, secret); err != nil {
			anyFailed = true
			e.Logger.WithError(err).WithField("path", fr.Path).Warn("restore: file failed")
			continue
		}
	}

	if anyFailed {
		return job.StatusERR, nil
	}
	return job.StatusOK, nil
}

// restoreFile fetches, decrypts, decompresses, and writes every chunk
// of fr in order, verifying each chunk's content hash before it is
// written.
func (e *Engine) restoreFile(ctx context.Context, j *job.Job, fr job.FileRun, secret []byte) error {
	if err := os.MkdirAll(filepath.Dir(fr.Path), 0o755); err != nil {
		return kerrors.New(kerrors.KindIO, "engine.restoreFile", err)
	}

	out, err := os.OpenFile(fr.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return kerrors.New(kerrors.KindIO, "engine.restoreFile", err)
	}
	defer out.Close()

	for _, fc := range fr.Chunks {
		rec, ok := j.LookupChunk(fc.Hash)
		if !ok {
			return kerrors.New(kerrors.KindIntegrity, "engine.restoreFile", fmt.Errorf("chunk %s not indexed", fc.Hash))
		}

		plaintext, err := e.fetchChunk(ctx, rec, fc.Hash, secret)
		if err != nil {
			return err
		}
		if int64(len(plaintext)) != fc.Length {
			return kerrors.New(kerrors.KindIntegrity, "engine.restoreFile",
				fmt.Errorf("chunk %s length mismatch: got %d want %d", fc.Hash, len(plaintext), fc.Length))
		}

		if _, err := out.WriteAt(plaintext, fc.Offset); err != nil {
			return kerrors.New(kerrors.KindIO, "engine.restoreFile", err)
		}

		e.Sink.Publish(progress.Message{FileChunk: &progress.FileChunkMsg{
			Path: fr.Path, Hash: fc.Hash, Offset: fc.Offset, Length: fc.Length, End: fc.End,
		}})
	}

	if err := out.Truncate(fr.Size); err != nil {
		return kerrors.New(kerrors.KindIO, "engine.restoreFile", err)
	}
	if !fr.ModTime.IsZero() {
		_ = os.Chtimes(fr.Path, time.Now(), fr.ModTime)
	}
	return nil
}

// fetchChunk downloads, decrypts, decompresses, and integrity-checks
// one chunk, re-hashing the plaintext to enforce content identity.
func (e *Engine) fetchChunk(ctx context.Context, rec *job.ChunkRecord, wantHash string, secret []byte) ([]byte, error) {
	var ciphertext []byte
	err := withRetry(ctx, e.Config.Retry, func() error {
		rc, err := e.Provider.Download(ctx, rec.RemotePath)
		if err != nil {
			return kerrors.New(kerrors.KindProvider, "engine.fetchChunk", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return kerrors.New(kerrors.KindProvider, "engine.fetchChunk", err)
		}
		ciphertext = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	compressed, err := kcrypto.Decrypt(ciphertext, secret)
	if err != nil {
		return nil, err
	}
	plaintext, err := compress.Decompress(compressed, rec.Algorithm)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(plaintext)
	got := hex.EncodeToString(sum[:])
	if got != wantHash {
		return nil, kerrors.New(kerrors.KindIntegrity, "engine.fetchChunk",
			fmt.Errorf("chunk hash mismatch: got %s want %s", got, wantHash))
	}
	return plaintext, nil
}
