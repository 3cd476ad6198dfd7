// Package caps models the fully resolved media capability descriptors
// exchanged between adjacent stages before data flows. A Capability is
// what the upstream transport commits to delivering; the conversion
// engine maps it to a tensor layout during negotiation.
package caps

import (
	"fmt"

	"github.com/tensorify/tensorconv/media"
)

// Capability is a resolved media-format description. Media selects which
// of the per-class fields is meaningful. Custom streams carry only a
// media-type name used for subplugin lookup.
type Capability struct {
	Media media.Type

	Video  Video
	Audio  Audio
	Text   Text
	Octet  Octet
	Tensor Tensor

	// Name is the raw media-type name for streams handled by a custom
	// converter or subplugin, e.g. "image/jpeg".
	Name string
}

func (c Capability) String() string {
	switch c.Media {
	case media.Video:
		return c.Video.String()
	case media.Audio:
		return c.Audio.String()
	case media.Text:
		return c.Text.String()
	case media.Octet:
		return c.Octet.String()
	case media.Tensor:
		return "tensor/flexible"
	case media.Any:
		return fmt.Sprintf("custom(%s)", c.Name)
	}
	return "invalid"
}

// Video describes a raw video stream.
type Video struct {
	Format VideoFormat
	Width  int
	Height int
	RateN  int
	RateD  int
}

func (v Video) String() string {
	return fmt.Sprintf("video/%s %dx%d @%d/%d", v.Format, v.Width, v.Height, v.RateN, v.RateD)
}

// Audio describes a raw interleaved audio stream.
type Audio struct {
	Format   AudioFormat
	Channels int
	Rate     int
}

func (a Audio) String() string {
	return fmt.Sprintf("audio/%s %dch @%d", a.Format, a.Channels, a.Rate)
}

// Text describes a utf8 text stream. Rate may be zero when the producer
// has no natural frame rate.
type Text struct {
	RateN int
	RateD int
}

func (t Text) String() string {
	return fmt.Sprintf("text/utf8 @%d/%d", t.RateN, t.RateD)
}

// Octet describes an arbitrary byte stream. Rate may be zero.
type Octet struct {
	RateN int
	RateD int
}

func (o Octet) String() string {
	return fmt.Sprintf("octet-stream @%d/%d", o.RateN, o.RateD)
}

// Tensor describes an already-tensorized stream whose units carry
// per-unit flexible headers. Rate may be zero.
type Tensor struct {
	RateN int
	RateD int
}

// ForVideo builds a video capability.
func ForVideo(f VideoFormat, width, height, rateN, rateD int) Capability {
	return Capability{Media: media.Video, Video: Video{Format: f, Width: width, Height: height, RateN: rateN, RateD: rateD}}
}

// ForAudio builds an audio capability.
func ForAudio(f AudioFormat, channels, rate int) Capability {
	return Capability{Media: media.Audio, Audio: Audio{Format: f, Channels: channels, Rate: rate}}
}

// ForText builds a text capability.
func ForText(rateN, rateD int) Capability {
	return Capability{Media: media.Text, Text: Text{RateN: rateN, RateD: rateD}}
}

// ForOctet builds a raw byte-stream capability.
func ForOctet(rateN, rateD int) Capability {
	return Capability{Media: media.Octet, Octet: Octet{RateN: rateN, RateD: rateD}}
}

// ForTensorStream builds a capability for an already-tensorized stream
// carrying per-unit flexible headers.
func ForTensorStream(rateN, rateD int) Capability {
	return Capability{Media: media.Tensor, Tensor: Tensor{RateN: rateN, RateD: rateD}}
}

// ForCustom builds a capability for a stream handled by a custom
// converter, identified by its media-type name.
func ForCustom(name string) Capability {
	return Capability{Media: media.Any, Name: name}
}
