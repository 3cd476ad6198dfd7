package convert

import (
	"time"

	"github.com/tensorify/tensorconv/media"
)

// chunk is one pushed frame's bytes plus the timestamps recorded at its
// FIFO position.
type chunk struct {
	data []byte
	pts  time.Duration
	dts  time.Duration
}

// adapter is the per-source-stream aggregation buffer: a byte FIFO with
// timestamp history. Frames are pushed whole; take pops an exact byte
// count spanning chunk boundaries. Partial leftovers persist until the
// stream is reset, at which point they are discarded, never emitted.
type adapter struct {
	chunks []chunk
	offset int // consumed bytes within chunks[0]
	avail  int
}

func (a *adapter) push(f *media.Frame) {
	if len(f.Data) == 0 {
		return
	}
	a.chunks = append(a.chunks, chunk{data: f.Data, pts: f.PTS, dts: f.DTS})
	a.avail += len(f.Data)
}

func (a *adapter) available() int {
	return a.avail
}

// prevPTS returns the PTS recorded at the chunk containing the current
// read position, and the byte distance from that chunk's start to the
// read position.
func (a *adapter) prevPTS() (time.Duration, uint64) {
	if len(a.chunks) == 0 {
		return media.NoTimestamp, 0
	}
	return a.chunks[0].pts, uint64(a.offset)
}

// prevDTS is prevPTS for decode timestamps.
func (a *adapter) prevDTS() (time.Duration, uint64) {
	if len(a.chunks) == 0 {
		return media.NoTimestamp, 0
	}
	return a.chunks[0].dts, uint64(a.offset)
}

// take pops exactly n buffered bytes as one contiguous buffer. The caller
// must ensure n <= available().
func (a *adapter) take(n int) []byte {
	out := make([]byte, 0, n)
	for n > 0 {
		c := &a.chunks[0]
		remain := len(c.data) - a.offset
		if remain > n {
			out = append(out, c.data[a.offset:a.offset+n]...)
			a.offset += n
			a.avail -= n
			return out
		}
		out = append(out, c.data[a.offset:]...)
		n -= remain
		a.avail -= remain
		a.offset = 0
		a.chunks = a.chunks[1:]
	}
	return out
}

func (a *adapter) clear() {
	a.chunks = nil
	a.offset = 0
	a.avail = 0
}
