// Package progress defines the asynchronous progress-message stream a
// Run publishes while it executes: FileChunk membership notices and
// byte-count updates.
package progress

// Message is the sum type of events a Run emits on its progress
// channel. Exactly one of the embedded fields is meaningful per value.
type Message struct {
	FileChunk     *FileChunkMsg
	BytesUploaded *BytesUploadedMsg
}

// FileChunkMsg records a chunk's membership in the file currently
// being processed. Hash is the chunk's content identity; Path is the
// file it belongs to.
type FileChunkMsg struct {
	Path   string
	Hash   string
	Offset int64
	Length int64
	End    int64
}

// BytesUploadedMsg reports stored_len bytes written to the provider
// for running totals.
type BytesUploadedMsg struct {
	StoredLen int64
}

// Sink receives progress messages. The run engine's default sink is
// NullSink; callers that need terminal bar rendering wrap one around a
// mutex-guarded renderer.
type Sink interface {
	Publish(Message)
}

// ChannelSink is a Sink backed by a buffered Go channel: the run
// engine publishes without blocking on a slow consumer as long as the
// buffer has room.
type ChannelSink struct {
	ch chan Message
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Message, buffer)}
}

// Publish sends msg, blocking only if the buffer is full.
func (s *ChannelSink) Publish(msg Message) {
	s.ch <- msg
}

// Messages returns the receive-only channel callers drain.
func (s *ChannelSink) Messages() <-chan Message {
	return s.ch
}

// Close signals no more messages will be published. Callers must not
// call Publish after Close.
func (s *ChannelSink) Close() {
	close(s.ch)
}

// NullSink discards every message; used where no progress consumer is
// attached (e.g. unattended scheduled runs).
type NullSink struct{}

func (NullSink) Publish(Message) {}
