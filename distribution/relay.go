package distribution

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tensorify/tensorconv/tensor"
)

// Subscriber is the interface a subscriber session must implement to
// receive tensor units from a Relay.
type Subscriber interface {
	ID() string
	SendAnnounce(cfg tensor.Config)
	SendUnit(u *tensor.Unit)
	Stats() SubscriberStats
}

// SubscriberStats captures delivery metrics for one subscriber.
type SubscriberStats struct {
	ID        string `json:"id"`
	UnitsSent int64  `json:"unitsSent"`
	BytesSent int64  `json:"bytesSent"`
	Dropped   int64  `json:"dropped"`
}

// Relay is the fan-out hub for a single stream. It receives the
// committed descriptor and the converted units from the engine and
// distributes both to all connected subscribers. The last announced
// descriptor is replayed to late joiners so they can interpret units
// immediately.
type Relay struct {
	log *slog.Logger

	mu          sync.RWMutex
	sessions    map[string]Subscriber
	current     tensor.Config
	announced   bool
	peerWant    *tensor.Config
	unitsPushed atomic.Int64
	bytesPushed atomic.Int64
}

// NewRelay creates a Relay with no subscribers.
func NewRelay(log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		log:      log.With("component", "relay"),
		sessions: make(map[string]Subscriber),
	}
}

// SetPeerConfig pins the descriptor the consumers of this relay expect.
// The engine consults it when shaping streams that carry no layout of
// their own.
func (r *Relay) SetPeerConfig(cfg tensor.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peerWant = &cfg
}

// PeerConfig reports the pinned consumer descriptor, if any.
func (r *Relay) PeerConfig() (tensor.Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.peerWant == nil {
		return tensor.Config{}, false
	}
	return *r.peerWant, true
}

// AnnounceConfig records and broadcasts a new committed descriptor.
// Ordering is preserved relative to PushUnit: units pushed after this
// call reach subscribers after the announcement.
func (r *Relay) AnnounceConfig(cfg tensor.Config) {
	r.mu.Lock()
	r.current = cfg
	r.announced = true
	sessions := snapshot(r.sessions)
	r.mu.Unlock()

	r.log.Info("descriptor announced", "config", cfg.String(), "subscribers", len(sessions))
	for _, s := range sessions {
		s.SendAnnounce(cfg)
	}
}

// PushUnit broadcasts one converted unit to all subscribers.
func (r *Relay) PushUnit(u *tensor.Unit) error {
	r.unitsPushed.Add(1)
	r.bytesPushed.Add(int64(u.TotalBytes()))

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		s.SendUnit(u)
	}
	return nil
}

// AddSubscriber replays the current descriptor to the subscriber, then
// registers it for live delivery. Replay happens before registration so
// the descriptor cannot arrive after a unit that depends on it.
func (r *Relay) AddSubscriber(s Subscriber) {
	r.mu.Lock()
	if r.announced {
		s.SendAnnounce(r.current)
	}
	r.sessions[s.ID()] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.log.Info("subscriber added", "session", s.ID(), "subscribers", count)
}

// RemoveSubscriber unregisters a subscriber by ID.
func (r *Relay) RemoveSubscriber(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	count := len(r.sessions)
	r.mu.Unlock()

	r.log.Info("subscriber removed", "session", id, "subscribers", count)
}

// SubscriberCount returns the number of currently connected subscribers.
func (r *Relay) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SubscriberStatsAll returns delivery metrics for every subscriber.
func (r *Relay) SubscriberStatsAll() []SubscriberStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := make([]SubscriberStats, 0, len(r.sessions))
	for _, s := range r.sessions {
		stats = append(stats, s.Stats())
	}
	return stats
}

// UnitsPushed returns the number of units this relay has distributed.
func (r *Relay) UnitsPushed() int64 { return r.unitsPushed.Load() }

// BytesPushed returns the payload byte total this relay has distributed.
func (r *Relay) BytesPushed() int64 { return r.bytesPushed.Load() }

func snapshot(m map[string]Subscriber) []Subscriber {
	out := make([]Subscriber, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}
