package convert

import (
	"github.com/tensorify/tensorconv/caps"
	"github.com/tensorify/tensorconv/tensor"
)

// parseText maps a utf8 text capability to a fixed-width uint8 tensor.
// Text has no inherent byte length, so the width must come from an
// explicit shape override; without one negotiation fails.
func parseText(t caps.Text, explicit *tensor.Group) (cfg tensor.Config, frameSize int, err error) {
	if explicit == nil || explicit.Num < 1 || explicit.Tensors[0].Dims[0] == 0 {
		return cfg, 0, configErrorf("text.size",
			"text streams need an explicit byte width, none was configured")
	}
	size := int(explicit.Tensors[0].Dims[0])

	rateN, rateD := t.RateN, t.RateD
	if rateD <= 0 {
		rateN, rateD = 0, 1
	}

	cfg = tensor.Config{RateN: rateN, RateD: rateD}
	cfg.Format = tensor.Static
	cfg.Num = 1
	cfg.Tensors[0].Type = tensor.Uint8
	cfg.Tensors[0].Dims = [tensor.RankLimit]uint32{uint32(size), 1}
	return cfg, size, nil
}
