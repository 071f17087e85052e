// Command kipd runs the backup daemon: it loads the job document,
// builds one engine per job, runs every job on the -interval flag's
// period, and serves a read-only status/metrics HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/kipbackup/kip/internal/api"
	"github.com/kipbackup/kip/internal/config"
	"github.com/kipbackup/kip/internal/engine"
	"github.com/kipbackup/kip/internal/job"
	"github.com/kipbackup/kip/internal/metrics"
	"github.com/kipbackup/kip/internal/middleware"
	"github.com/kipbackup/kip/internal/provider"
	"github.com/kipbackup/kip/internal/provider/drive"
	"github.com/kipbackup/kip/internal/provider/local"
	"github.com/kipbackup/kip/internal/provider/s3"
	"github.com/kipbackup/kip/internal/provider/smb"
	"github.com/kipbackup/kip/internal/repository"
	"github.com/kipbackup/kip/internal/tracing"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		docPath  = flag.String("doc", "kip.yaml", "path to the job document")
		addr     = flag.String("addr", ":8080", "status server listen address")
		interval = flag.Duration("interval", time.Hour, "default backup interval")
		verbose  = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	store := repository.NewStore(*docPath)
	doc, err := store.Load(ctx)
	if err != nil {
		logger.WithError(err).Fatal("load job document")
	}

	tp, err := tracing.NewProvider(os.Stdout)
	if err != nil {
		logger.WithError(err).Warn("tracing disabled")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracing.Shutdown(shutdownCtx, tp)
		}()
	}

	m := metrics.NewMetrics()
	m.StartSystemMetricsCollector()

	registry := &jobRegistry{jobs: doc.Jobs}

	watcher, err := repository.WatchDocument(store, logger, registry.reload)
	if err != nil {
		logger.WithError(err).Warn("document hot-reload disabled")
	} else {
		defer watcher.Close()
	}

	var wg sync.WaitGroup
	for name, j := range doc.Jobs {
		eng, secret, err := buildEngine(j, m, store, logger, doc)
		if err != nil {
			logger.WithError(err).WithField("job", name).Error("skip job: cannot build engine")
			continue
		}

		wg.Add(1)
		go func(name string, j *job.Job, eng *engine.Engine, secret []byte) {
			defer wg.Done()
			runLoop(ctx, name, j, eng, secret, *interval, logger, m)
		}(name, j, eng, secret)
	}

	router := mux.NewRouter()
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	api.NewHandler(registry.lookup, logger, m, config.DefaultEngineConfig().Hardware).RegisterRoutes(router)

	srv := &http.Server{Addr: *addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", *addr).Info("status server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("status server failed")
	}
	wg.Wait()
}

type jobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
}

func (r *jobRegistry) lookup(name string) (*job.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[name]
	return j, ok
}

// reload adds jobs from a freshly re-read document that are not yet in
// the registry, so the status API can report them. Existing jobs keep
// their in-memory Job unchanged, no credentials or schedule fields are
// refreshed, and no runLoop is started for an added job.
func (r *jobRegistry) reload(doc *repository.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, j := range doc.Jobs {
		if _, ok := r.jobs[name]; !ok {
			r.jobs[name] = j
		}
	}
}

func runLoop(ctx context.Context, name string, j *job.Job, eng *engine.Engine, secret []byte, interval time.Duration, logger *logrus.Logger, m *metrics.Metrics) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !j.IsPaused() {
			start := time.Now()
			run, err := eng.Upload(ctx, j, secret)
			if err != nil {
				logger.WithError(err).WithField("job", name).Error("upload run failed")
			} else if run != nil {
				m.RecordRun(ctx, name, string(run.Status), time.Since(start))
				logger.WithFields(logrus.Fields{"job": name, "run": run.ID, "status": run.Status}).Info("run finished")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func buildEngine(j *job.Job, m *metrics.Metrics, store *repository.Store, logger *logrus.Logger, doc *repository.Document) (*engine.Engine, []byte, error) {
	p, err := buildProvider(j.ID.String(), j.Provider, doc)
	if err != nil {
		return nil, nil, err
	}

	secret := []byte(doc.S3SecretKey)
	eng := engine.New(p,
		engine.WithRepository(store),
		engine.WithLogger(logger),
	)
	return eng, secret, nil
}

func buildProvider(jobID string, cfg config.ProviderConfig, doc *repository.Document) (provider.Provider, error) {
	switch cfg.Kind {
	case config.ProviderS3:
		return s3.New(context.Background(), cfg, doc.S3AccessKey, doc.S3SecretKey)
	case config.ProviderDrive:
		return drive.New(context.Background(), jobID, cfg.DriveParentFolder)
	case config.ProviderUSB:
		return local.New(cfg.USBRootPath, config.DefaultEngineConfig().MmapThreshold), nil
	case config.ProviderSMB:
		return smb.New(cfg.SMBMountPath, cfg.SMBShare, config.DefaultEngineConfig().MmapThreshold), nil
	default:
		return nil, fmt.Errorf("unsupported provider kind %q", cfg.Kind)
	}
}
