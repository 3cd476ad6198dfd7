// Package media defines the frame type and media classes that flow into
// the conversion engine, from ingest through tensor distribution.
package media

import "time"

// NoTimestamp marks an absent PTS, DTS, or duration on a Frame.
const NoTimestamp = time.Duration(-1)

// ValidTime reports whether t carries a real timestamp or duration.
func ValidTime(t time.Duration) bool {
	return t >= 0
}

// Type classifies the media carried by a Frame. The numeric values are
// stable: they are written into flexible-unit headers as the origin
// media-type tag.
type Type int

// Media classes understood by the conversion engine.
const (
	Video  Type = iota // raw video frames
	Audio              // raw interleaved audio samples
	Text               // utf8 text
	Octet              // application/octet-stream, arbitrary bytes
	Tensor             // already-tensorized stream with per-unit headers
	Any                // handled by a custom converter or subplugin
)

// Invalid marks a stream whose media class could not be determined.
const Invalid Type = -1

func (t Type) String() string {
	switch t {
	case Video:
		return "video"
	case Audio:
		return "audio"
	case Text:
		return "text"
	case Octet:
		return "octet"
	case Tensor:
		return "tensor"
	case Any:
		return "any"
	}
	return "invalid"
}

// Frame is a single media frame handed to the conversion engine. The
// transport owns the frame until it is pushed; afterwards the engine or
// the downstream stage owns it. Data is never shared back to the caller.
type Frame struct {
	Data     []byte
	PTS      time.Duration
	DTS      time.Duration
	Duration time.Duration

	// StreamID distinguishes independent sub-streams multiplexed through
	// one engine instance. Frames with distinct ids aggregate separately.
	StreamID int64
}

// NewFrame returns a Frame with no timing information. The engine
// synthesizes timestamps for such frames when configured to do so.
func NewFrame(data []byte) *Frame {
	return &Frame{
		Data:     data,
		PTS:      NoTimestamp,
		DTS:      NoTimestamp,
		Duration: NoTimestamp,
	}
}
