package job

import "sync"

// cancelToken implements cooperative cancellation: aborting a job must
// cancel the owning Run's in-flight provider uploads without ever
// committing a partial Run, leaking temp files, or leaving semaphore
// permits held. The run engine (internal/engine) checks Done() before
// each file and at each chunk boundary, and cancels the context of its
// provider calls and retry waits once Done() is closed.
type cancelToken struct {
	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

func newCancelToken() *cancelToken {
	return &cancelToken{done: make(chan struct{})}
}

// Cancel requests cancellation. Safe to call multiple times.
func (c *cancelToken) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// Done returns a channel closed once Cancel has been called.
func (c *cancelToken) Done() <-chan struct{} {
	return c.done
}

// Cancelled reports whether Cancel has already been called.
func (c *cancelToken) Cancelled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Abort requests cancellation of the job's currently in-flight Run, if
// any. A job with no run in flight ignores the call.
func (j *Job) Abort() {
	j.mu.Lock()
	tok := j.cancel
	j.mu.Unlock()
	if tok != nil {
		tok.Cancel()
	}
}

// BeginRun installs a fresh cancellation token for a new in-flight Run
// and returns it; the run engine watches its Done() channel for the
// duration of the run.
func (j *Job) BeginRun() *cancelToken {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = newCancelToken()
	return j.cancel
}

// EndRun clears the job's cancellation token once a run has finished
// (committed or discarded), so a subsequent Abort call on an idle job
// is a documented no-op rather than acting on stale state.
func (j *Job) EndRun() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = nil
}

// Pause/Resume suspend or resume future scheduled runs without
// touching any in-flight one.
func (j *Job) Pause() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Paused = true
}

func (j *Job) Resume() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Paused = false
}

// IsPaused reports whether scheduled runs are currently suspended.
func (j *Job) IsPaused() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Paused
}
