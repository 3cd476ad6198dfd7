package stream

import (
	"testing"
	"time"
)

func TestCreateRemove(t *testing.T) {
	t.Parallel()

	m := NewManager(nil)
	s, created := m.Create("cam1")
	if !created || s == nil {
		t.Fatal("create failed")
	}
	if s.ID == "" {
		t.Error("stream has no id")
	}

	if _, created := m.Create("cam1"); created {
		t.Error("duplicate key accepted")
	}

	m.Remove("cam1")
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after remove")
	}
	if _, ok := m.Get("cam1"); ok {
		t.Error("stream still present after remove")
	}

	// The key is free again.
	if _, created := m.Create("cam1"); !created {
		t.Error("key not reusable after remove")
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	m := NewManager(nil)
	m.Create("a")
	m.Create("b")
	if got := len(m.List()); got != 2 {
		t.Errorf("list length: got %d, want 2", got)
	}
}
