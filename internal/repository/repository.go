// Package repository persists the job document to disk: a single YAML
// file holding every configured job, written atomically via a
// temp-file-then-rename so a crash mid-write never corrupts the prior
// state.
package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kipbackup/kip/internal/job"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk root object: every job keyed by name, plus
// the credential and scheduling fields shared across jobs.
type Document struct {
	S3AccessKey    string               `yaml:"s3_access_key,omitempty"`
	S3SecretKey    string               `yaml:"s3_secret_key,omitempty"`
	BackupInterval string               `yaml:"backup_interval,omitempty"`
	Jobs           map[string]*job.Job  `yaml:"jobs"`
}

// Store reads and writes a Document at a fixed path. Store is safe for
// concurrent use; writers serialize through mu and persist through a
// temp file renamed into place so readers never observe a partial file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore opens a Store backed by path. The file is not required to
// exist yet; Load returns an empty Document in that case.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the document from disk, returning an empty Document if no
// file exists yet.
func (s *Store) Load(ctx context.Context) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &Document{Jobs: make(map[string]*job.Job)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: read %s: %w", s.path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("repository: parse %s: %w", s.path, err)
	}
	if doc.Jobs == nil {
		doc.Jobs = make(map[string]*job.Job)
	}
	return &doc, nil
}

// SaveDocument writes doc atomically: marshal to a sibling temp file in
// the same directory, fsync, then rename over the target path.
func (s *Store) SaveDocument(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(doc)
}

// Save loads the current document, upserts j by name, and writes the
// result back. It implements engine.Repository.
func (s *Store) Save(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	var doc Document
	switch {
	case os.IsNotExist(err):
		doc = Document{Jobs: make(map[string]*job.Job)}
	case err != nil:
		return fmt.Errorf("repository: read %s: %w", s.path, err)
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("repository: parse %s: %w", s.path, err)
		}
		if doc.Jobs == nil {
			doc.Jobs = make(map[string]*job.Job)
		}
	}

	doc.Jobs[j.Name] = j
	return s.writeAtomic(&doc)
}

func (s *Store) writeAtomic(doc *Document) error {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("repository: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".kip-doc-*.tmp")
	if err != nil {
		return fmt.Errorf("repository: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("repository: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("repository: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("repository: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("repository: rename into place: %w", err)
	}
	return nil
}
