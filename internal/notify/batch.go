package notify

import (
	"sync"
	"time"
)

// BatchSink buffers Events and flushes them to a wrapped Sink either
// when the buffer fills or on a timer: a background goroutine owns the
// flush loop, callers never block on delivery.
type BatchSink struct {
	wrapped       Sink
	buffer        []Event
	bufferSize    int
	flushInterval time.Duration
	mu            sync.Mutex
	closeChan     chan struct{}
	wg            sync.WaitGroup
	retryCount    int
	retryBackoff  time.Duration
}

// NewBatchSink wraps sink with batching. size/interval default to 20
// events / 30s when given as zero.
func NewBatchSink(wrapped Sink, size int, interval time.Duration, retryCount int, retryBackoff time.Duration) *BatchSink {
	if size <= 0 {
		size = 20
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s := &BatchSink{
		wrapped:       wrapped,
		buffer:        make([]Event, 0, size),
		bufferSize:    size,
		flushInterval: interval,
		closeChan:     make(chan struct{}),
		retryCount:    retryCount,
		retryBackoff:  retryBackoff,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Notify enqueues e; if the buffer is now full, it drains the buffer
// and flushes those events in a background goroutine.
func (s *BatchSink) Notify(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, e)
	if len(s.buffer) >= s.bufferSize {
		events := s.drainLocked()
		go s.flushWithRetry(events)
	}
	return nil
}

// Close stops the flush loop and flushes whatever remains.
func (s *BatchSink) Close() error {
	close(s.closeChan)
	s.wg.Wait()
	return s.wrapped.Close()
}

func (s *BatchSink) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			events := s.drainLocked()
			s.mu.Unlock()
			if len(events) > 0 {
				s.flushWithRetry(events)
			}
		case <-s.closeChan:
			s.mu.Lock()
			events := s.drainLocked()
			s.mu.Unlock()
			if len(events) > 0 {
				s.flushWithRetry(events)
			}
			return
		}
	}
}

func (s *BatchSink) drainLocked() []Event {
	if len(s.buffer) == 0 {
		return nil
	}
	events := make([]Event, len(s.buffer))
	copy(events, s.buffer)
	s.buffer = s.buffer[:0]
	return events
}

func (s *BatchSink) flushWithRetry(events []Event) {
	var err error
	for i := 0; i <= s.retryCount; i++ {
		err = nil
		for _, e := range events {
			if werr := s.wrapped.Notify(e); werr != nil {
				err = werr
			}
		}
		if err == nil {
			return
		}
		if i < s.retryCount {
			time.Sleep(s.retryBackoff * time.Duration(1<<uint(i)))
		}
	}
}
