package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kipbackup/kip/internal/config"
	"github.com/kipbackup/kip/internal/job"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestWatchDocumentReloadsOnExternalWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kip.yaml")
	store := NewStore(path)

	j := job.New("nightly", config.ProviderConfig{Kind: config.ProviderUSB})
	require.NoError(t, store.Save(context.Background(), j))

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	reloaded := make(chan *Document, 1)
	w, err := WatchDocument(store, logger, func(doc *Document) {
		reloaded <- doc
	})
	require.NoError(t, err)
	defer w.Close()

	other := job.New("weekly", config.ProviderConfig{Kind: config.ProviderUSB})
	require.NoError(t, store.Save(context.Background(), other))

	select {
	case doc := <-reloaded:
		require.Contains(t, doc.Jobs, "weekly")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}
