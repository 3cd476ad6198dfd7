package convert

import (
	"bytes"
	"testing"
	"time"

	"github.com/tensorify/tensorconv/media"
)

func frameWithPTS(data []byte, pts time.Duration) *media.Frame {
	f := media.NewFrame(data)
	f.PTS = pts
	return f
}

func TestAdapterTakeSpansChunks(t *testing.T) {
	t.Parallel()

	var a adapter
	a.push(media.NewFrame([]byte{0, 1, 2}))
	a.push(media.NewFrame([]byte{3, 4}))
	a.push(media.NewFrame([]byte{5, 6, 7, 8}))

	if a.available() != 9 {
		t.Fatalf("available: got %d, want 9", a.available())
	}

	// Every input byte comes out exactly once, in order, regardless of
	// how reads align with pushed chunk boundaries.
	got := append(a.take(4), a.take(5)...)
	want := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8}
	if !bytes.Equal(got, want) {
		t.Errorf("drained bytes: got %v, want %v", got, want)
	}
	if a.available() != 0 {
		t.Errorf("available after drain: got %d", a.available())
	}
}

func TestAdapterPrevPTS(t *testing.T) {
	t.Parallel()

	var a adapter
	a.push(frameWithPTS(make([]byte, 6), 100*time.Millisecond))
	a.push(frameWithPTS(make([]byte, 6), 200*time.Millisecond))

	pts, dist := a.prevPTS()
	if pts != 100*time.Millisecond || dist != 0 {
		t.Errorf("at start: got (%v, %d)", pts, dist)
	}

	// Consume into the middle of the first chunk.
	a.take(4)
	pts, dist = a.prevPTS()
	if pts != 100*time.Millisecond || dist != 4 {
		t.Errorf("mid-chunk: got (%v, %d), want (100ms, 4)", pts, dist)
	}

	// Crossing into the second chunk switches the reference timestamp.
	a.take(4)
	pts, dist = a.prevPTS()
	if pts != 200*time.Millisecond || dist != 2 {
		t.Errorf("second chunk: got (%v, %d), want (200ms, 2)", pts, dist)
	}
}

func TestAdapterClearDiscardsPartial(t *testing.T) {
	t.Parallel()

	var a adapter
	a.push(media.NewFrame([]byte{1, 2, 3}))
	a.take(1)
	a.clear()

	if a.available() != 0 {
		t.Errorf("available after clear: got %d", a.available())
	}
	if pts, _ := a.prevPTS(); pts != media.NoTimestamp {
		t.Errorf("prevPTS after clear: got %v", pts)
	}
}

func TestAdapterIgnoresEmptyFrames(t *testing.T) {
	t.Parallel()

	var a adapter
	a.push(media.NewFrame(nil))
	if a.available() != 0 {
		t.Errorf("available: got %d", a.available())
	}
}
