package distribution

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tensorify/tensorconv/tensor"
)

// sendQueueDepth is how many encoded messages may queue per subscriber
// before units start being dropped for that subscriber.
const sendQueueDepth = 64

// session delivers encoded wire messages to one subscriber over a
// byte stream. A slow subscriber loses units, never announcements, and
// never slows the relay or other subscribers.
type session struct {
	id  string
	log *slog.Logger
	w   io.Writer

	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once

	unitsSent atomic.Int64
	bytesSent atomic.Int64
	dropped   atomic.Int64
}

func newSession(id string, w io.Writer, log *slog.Logger) *session {
	s := &session{
		id:     id,
		log:    log.With("session", id),
		w:      w,
		sendCh: make(chan []byte, sendQueueDepth),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

func (s *session) ID() string { return s.id }

// Done is closed when the session's writer fails.
func (s *session) Done() <-chan struct{} { return s.done }

// SendAnnounce queues a descriptor announcement. Announcements block
// rather than drop: a subscriber that misses one cannot interpret any
// following unit.
func (s *session) SendAnnounce(cfg tensor.Config) {
	buf := AppendAnnounce(nil, &cfg)
	select {
	case s.sendCh <- buf:
	case <-s.done:
	}
}

// SendUnit queues one unit, dropping it if the subscriber is backed up.
func (s *session) SendUnit(u *tensor.Unit) {
	buf := AppendUnit(nil, u)
	select {
	case s.sendCh <- buf:
	case <-s.done:
	default:
		s.dropped.Add(1)
	}
}

// Stats returns delivery metrics for this subscriber.
func (s *session) Stats() SubscriberStats {
	return SubscriberStats{
		ID:        s.id,
		UnitsSent: s.unitsSent.Load(),
		BytesSent: s.bytesSent.Load(),
		Dropped:   s.dropped.Load(),
	}
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case buf := <-s.sendCh:
			if _, err := s.w.Write(buf); err != nil {
				s.log.Debug("write failed", "error", err)
				s.close()
				return
			}
			s.unitsSent.Add(1)
			s.bytesSent.Add(int64(len(buf)))
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
