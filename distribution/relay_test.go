package distribution

import (
	"sync"
	"testing"

	"github.com/tensorify/tensorconv/tensor"
)

// fakeSubscriber records the order of announcements and units.
type fakeSubscriber struct {
	id string

	mu     sync.Mutex
	events []string
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) SendAnnounce(tensor.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "announce")
}

func (f *fakeSubscriber) SendUnit(*tensor.Unit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "unit")
}

func (f *fakeSubscriber) Stats() SubscriberStats { return SubscriberStats{ID: f.id} }

func (f *fakeSubscriber) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func TestRelayAnnounceBeforeUnits(t *testing.T) {
	t.Parallel()

	r := NewRelay(nil)
	sub := &fakeSubscriber{id: "a"}
	r.AddSubscriber(sub)

	cfg := testConfig()
	r.AnnounceConfig(cfg)
	if err := r.PushUnit(&tensor.Unit{Tensors: [][]byte{{1}}}); err != nil {
		t.Fatalf("push: %v", err)
	}

	events := sub.snapshot()
	if len(events) != 2 || events[0] != "announce" || events[1] != "unit" {
		t.Errorf("delivery order: got %v", events)
	}
}

// A subscriber joining after the descriptor was announced still gets it
// before any unit.
func TestRelayReplaysDescriptorToLateJoiner(t *testing.T) {
	t.Parallel()

	r := NewRelay(nil)
	r.AnnounceConfig(testConfig())

	late := &fakeSubscriber{id: "late"}
	r.AddSubscriber(late)
	r.PushUnit(&tensor.Unit{Tensors: [][]byte{{1}}})

	events := late.snapshot()
	if len(events) != 2 || events[0] != "announce" {
		t.Errorf("late joiner events: got %v", events)
	}
}

func TestRelayRemoveSubscriber(t *testing.T) {
	t.Parallel()

	r := NewRelay(nil)
	sub := &fakeSubscriber{id: "a"}
	r.AddSubscriber(sub)
	r.RemoveSubscriber("a")
	r.PushUnit(&tensor.Unit{Tensors: [][]byte{{1}}})

	if events := sub.snapshot(); len(events) != 0 {
		t.Errorf("removed subscriber still received %v", events)
	}
	if r.SubscriberCount() != 0 {
		t.Errorf("subscriber count: got %d", r.SubscriberCount())
	}
}

func TestRelayPeerConfig(t *testing.T) {
	t.Parallel()

	r := NewRelay(nil)
	if _, ok := r.PeerConfig(); ok {
		t.Error("unset peer config reported present")
	}
	want := testConfig()
	r.SetPeerConfig(want)
	got, ok := r.PeerConfig()
	if !ok || !got.Equal(&want) {
		t.Errorf("peer config: got %v %s", ok, &got)
	}
}
