// Package ingest manages active ingest connections, coupling transport
// receivers with metadata, lifecycle signaling, and pipeline dispatch.
package ingest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tensorify/tensorconv/media"
)

// frameBufferDepth is how many received frames may queue between the
// transport receiver and the conversion pipeline before the receiver
// blocks.
const frameBufferDepth = 256

// Stats captures connection-level metrics for an ingest stream, exposed
// for monitoring source health.
type Stats struct {
	BytesReceived int64  `json:"bytesReceived"`
	FrameCount    int64  `json:"frameCount"`
	ConnectedAt   int64  `json:"connectedAt"`
	UptimeMs      int64  `json:"uptimeMs"`
	RemoteAddr    string `json:"remoteAddr"`
}

// Stream represents an active ingest connection. Frames pushed by the
// transport receiver are consumed by the conversion pipeline through
// the Frames channel.
type Stream struct {
	Key       string
	StartedAt time.Time

	frames chan *media.Frame
	done   chan struct{}

	closeOnce sync.Once

	bytesReceived atomic.Int64
	frameCount    atomic.Int64
	remoteAddr    atomic.Value
}

// Push hands one received frame to the pipeline, blocking when the
// pipeline falls behind. It returns false once the stream is closed.
func (s *Stream) Push(f *media.Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.frames <- f:
		s.bytesReceived.Add(int64(len(f.Data)))
		s.frameCount.Add(1)
		return true
	case <-s.done:
		return false
	}
}

// Frames is the channel the pipeline consumes. It is closed when the
// stream is unregistered.
func (s *Stream) Frames() <-chan *media.Frame {
	return s.frames
}

// Done is closed when the stream is unregistered.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// SetRemoteAddr stores the remote address of the ingest connection for
// diagnostics.
func (s *Stream) SetRemoteAddr(addr string) {
	s.remoteAddr.Store(addr)
}

// IngestStats returns a snapshot of ingest connection metrics.
func (s *Stream) IngestStats() Stats {
	addr, _ := s.remoteAddr.Load().(string)
	return Stats{
		BytesReceived: s.bytesReceived.Load(),
		FrameCount:    s.frameCount.Load(),
		ConnectedAt:   s.StartedAt.UnixMilli(),
		UptimeMs:      time.Since(s.StartedAt).Milliseconds(),
		RemoteAddr:    addr,
	}
}

func (s *Stream) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		close(s.frames)
	})
}

// Registry tracks active ingest streams by key and dispatches new
// streams to the onStream callback for pipeline setup. It is the
// rendezvous point between the transport layer and the conversion
// pipeline.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*Stream

	onStream func(key string, s *Stream)
}

// NewRegistry creates a Registry. The onStream callback is invoked
// asynchronously whenever a new stream is registered.
func NewRegistry(onStream func(key string, s *Stream)) *Registry {
	return &Registry{
		streams:  make(map[string]*Stream),
		onStream: onStream,
	}
}

// Register creates a new ingest stream with the given key. The second
// return is false when a stream with this key is already active.
func (r *Registry) Register(key string) (*Stream, bool) {
	stream := &Stream{
		Key:       key,
		StartedAt: time.Now(),
		frames:    make(chan *media.Frame, frameBufferDepth),
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	if _, exists := r.streams[key]; exists {
		r.mu.Unlock()
		return nil, false
	}
	r.streams[key] = stream
	r.mu.Unlock()

	if r.onStream != nil {
		go r.onStream(key, stream)
	}
	return stream, true
}

// Unregister removes a stream by key, closing its frame channel.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	stream, ok := r.streams[key]
	if ok {
		delete(r.streams, key)
	}
	r.mu.Unlock()

	if ok {
		stream.close()
	}
}

// Get returns the Stream for the given key, or false if not found.
func (r *Registry) Get(key string) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[key]
	return s, ok
}
