package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/kipbackup/kip/internal/job"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (r *recordingSink) Notify(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingSink) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func TestEventFromRunSummarizesRun(t *testing.T) {
	r := &job.Run{ID: 3, Status: job.StatusOK, BytesUploaded: 4096, FilesChanged: []job.FileRun{{}, {}}}
	e := EventFromRun("nightly", r)
	require.Equal(t, "nightly", e.JobName)
	require.Equal(t, 3, e.RunID)
	require.Contains(t, e.Message, "2 files")
}

func TestBatchSinkFlushesOnBufferFull(t *testing.T) {
	inner := &recordingSink{}
	s := NewBatchSink(inner, 2, time.Hour, 0, 0)
	defer s.Close()

	require.NoError(t, s.Notify(Event{JobName: "a", RunID: 1}))
	require.NoError(t, s.Notify(Event{JobName: "a", RunID: 2}))

	require.Eventually(t, func() bool { return len(inner.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestBatchSinkFlushesOnTimer(t *testing.T) {
	inner := &recordingSink{}
	s := NewBatchSink(inner, 100, 20*time.Millisecond, 0, 0)
	defer s.Close()

	require.NoError(t, s.Notify(Event{JobName: "a", RunID: 1}))
	require.Eventually(t, func() bool { return len(inner.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestBatchSinkCloseFlushesRemainderAndClosesWrapped(t *testing.T) {
	inner := &recordingSink{}
	s := NewBatchSink(inner, 100, time.Hour, 0, 0)

	require.NoError(t, s.Notify(Event{JobName: "a", RunID: 1}))
	require.NoError(t, s.Close())

	require.Len(t, inner.snapshot(), 1)
	require.True(t, inner.closed)
}
