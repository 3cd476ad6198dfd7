package ingest

import (
	"testing"
	"time"

	"github.com/tensorify/tensorconv/media"
)

func TestRegisterAndPush(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	s, ok := r.Register("cam1")
	if !ok {
		t.Fatal("register failed")
	}

	if !s.Push(media.NewFrame([]byte{1, 2, 3})) {
		t.Fatal("push on live stream failed")
	}
	f := <-s.Frames()
	if len(f.Data) != 3 {
		t.Errorf("frame length: got %d", len(f.Data))
	}

	stats := s.IngestStats()
	if stats.BytesReceived != 3 || stats.FrameCount != 1 {
		t.Errorf("stats: got %+v", stats)
	}
}

func TestRegisterDuplicateKey(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	if _, ok := r.Register("cam1"); !ok {
		t.Fatal("first register failed")
	}
	if _, ok := r.Register("cam1"); ok {
		t.Error("duplicate key accepted")
	}
}

func TestUnregisterClosesStream(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	s, _ := r.Register("cam1")
	r.Unregister("cam1")

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after unregister")
	}
	if s.Push(media.NewFrame([]byte{1})) {
		t.Error("push on closed stream succeeded")
	}
	if _, ok := <-s.Frames(); ok {
		t.Error("frames channel not closed")
	}
	if _, ok := r.Get("cam1"); ok {
		t.Error("stream still registered")
	}
}

func TestOnStreamCallback(t *testing.T) {
	t.Parallel()

	got := make(chan string, 1)
	r := NewRegistry(func(key string, s *Stream) {
		got <- key
	})
	r.Register("cam1")

	select {
	case key := <-got:
		if key != "cam1" {
			t.Errorf("callback key: got %q", key)
		}
	case <-time.After(time.Second):
		t.Fatal("onStream callback not invoked")
	}
}
