// Package engine orchestrates one upload or restore run:
// bounded-concurrency per-file pipelines, content-defined
// chunking, dedup against the job's chunk index and the provider's
// presence oracle, the compress→encrypt→upload transform, and the
// restore reassembly algorithm.
package engine

import (
	"context"
	"sync"

	"github.com/kipbackup/kip/internal/config"
	"github.com/kipbackup/kip/internal/job"
	"github.com/kipbackup/kip/internal/progress"
	"github.com/kipbackup/kip/internal/provider"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Repository persists a Job after a run commits.
// internal/repository.Store satisfies this interface; Engine only
// depends on the narrow slice it actually needs.
type Repository interface {
	Save(ctx context.Context, j *job.Job) error
}

// Engine runs uploads and restores for jobs bound to one provider.
type Engine struct {
	Provider   provider.Provider
	Cache      *provider.PresenceCache
	Config     config.EngineConfig
	Sink       progress.Sink
	Repository Repository
	Logger     *logrus.Logger
	Tracer     trace.Tracer

	// chunkLocks serializes concurrent uploads of the same content
	// hash: two files in the same run can share a chunk, and without
	// this, both goroutines could observe "not yet indexed" and upload
	// redundantly before either calls job.IndexChunk.
	chunkLocks sync.Map // hash string -> *sync.Mutex
}

func (e *Engine) lockChunk(hash string) func() {
	v, _ := e.chunkLocks.LoadOrStore(hash, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// New builds an Engine with sane defaults for any unset field.
func New(p provider.Provider, opts ...Option) *Engine {
	e := &Engine{
		Provider: p,
		Config:   config.DefaultEngineConfig(),
		Sink:     progress.NullSink{},
		Logger:   logrus.StandardLogger(),
		Tracer:   otel.Tracer("github.com/kipbackup/kip/internal/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Option configures an Engine at construction time.
type Option func(*Engine)

func WithCache(c *provider.PresenceCache) Option   { return func(e *Engine) { e.Cache = c } }
func WithConfig(cfg config.EngineConfig) Option    { return func(e *Engine) { e.Config = cfg } }
func WithSink(s progress.Sink) Option              { return func(e *Engine) { e.Sink = s } }
func WithRepository(r Repository) Option           { return func(e *Engine) { e.Repository = r } }
func WithLogger(l *logrus.Logger) Option           { return func(e *Engine) { e.Logger = l } }
func WithTracer(t trace.Tracer) Option             { return func(e *Engine) { e.Tracer = t } }
