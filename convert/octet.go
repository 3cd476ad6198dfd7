package convert

import (
	"github.com/tensorify/tensorconv/caps"
	"github.com/tensorify/tensorconv/tensor"
)

// parseOctet maps a raw byte stream to a tensor layout. The shape comes
// from an explicit override, or failing that from the downstream peer's
// committed descriptor; with neither the stream falls back to flexible
// output where each unit's dimension is its own byte length.
//
// Byte streams have no frame boundary to aggregate on, so accumulation
// is rejected: multi-tensor layouts and flexible output both require
// framesPerTensor of 1.
func parseOctet(o caps.Octet, explicit *tensor.Group, peer *tensor.Config, framesPerTensor int) (cfg tensor.Config, frameSize int, err error) {
	rateN, rateD := o.RateN, o.RateD
	if rateD <= 0 {
		rateN, rateD = 0, 1
	}
	cfg = tensor.Config{RateN: rateN, RateD: rateD}

	var shape *tensor.Group
	switch {
	case explicit != nil && explicit.Validate() == nil:
		shape = explicit
	case peer != nil && peer.Format == tensor.Static && peer.Group.Validate() == nil:
		shape = &peer.Group
	}

	if shape == nil {
		if framesPerTensor > 1 {
			return cfg, 0, configErrorf("octet.frames",
				"flexible byte streams cannot accumulate %d frames per tensor", framesPerTensor)
		}
		cfg.Format = tensor.Flexible
		cfg.Num = 1
		cfg.Tensors[0].Type = tensor.Uint8
		cfg.Tensors[0].Dims = [tensor.RankLimit]uint32{1}
		return cfg, 0, nil
	}

	if shape.Num > 1 && framesPerTensor > 1 {
		return cfg, 0, configErrorf("octet.frames",
			"multi-tensor byte layouts cannot accumulate %d frames per tensor", framesPerTensor)
	}

	cfg.Group = *shape
	cfg.Format = tensor.Static
	return cfg, int(cfg.Group.TotalSize()), nil
}
