package convert

import (
	"github.com/tensorify/tensorconv/caps"
	"github.com/tensorify/tensorconv/tensor"
)

// parseAudio maps an interleaved audio capability to a single-tensor
// layout with dimensions [channels, frames]. One audio frame is one
// sample across all channels, so a source buffer may carry many frames.
func parseAudio(a caps.Audio) (cfg tensor.Config, frameSize int, err error) {
	elem := a.Format.ElementType()
	if !elem.Valid() {
		return cfg, 0, configErrorf("audio.format", "unsupported audio format %q", a.Format)
	}
	if a.Channels <= 0 {
		return cfg, 0, configErrorf("audio.channels", "invalid channel count %d", a.Channels)
	}
	if a.Rate < 0 {
		return cfg, 0, configErrorf("audio.rate", "invalid sample rate %d", a.Rate)
	}

	cfg = tensor.Config{RateN: a.Rate, RateD: 1}
	cfg.Format = tensor.Static
	cfg.Num = 1
	cfg.Tensors[0].Type = elem
	cfg.Tensors[0].Dims = [tensor.RankLimit]uint32{uint32(a.Channels), 1}
	return cfg, elem.Size() * a.Channels, nil
}
