package convert

import (
	"github.com/tensorify/tensorconv/caps"
	"github.com/tensorify/tensorconv/tensor"
)

// PossibleSources enumerates the upstream media capabilities that could
// negotiate into the requested tensor descriptor. It answers the reverse
// question a consumer-driven pipeline asks: given what the consumer
// wants, what may the producer offer?
func PossibleSources(req tensor.Config) []caps.Capability {
	var out []caps.Capability

	rateN, rateD := req.RateN, req.RateD
	if rateD <= 0 {
		rateN, rateD = 0, 1
	}

	if req.Format == tensor.Static && req.Num == 1 {
		d := &req.Tensors[0]

		// Packed video, dims [channels, width, height, frames].
		if d.Dims[1] > 0 && d.Dims[2] > 0 {
			for _, f := range caps.VideoFormatsForChannels(int(d.Dims[0])) {
				if f.ElementType() != d.Type {
					continue
				}
				out = append(out, caps.ForVideo(f, int(d.Dims[1]), int(d.Dims[2]), rateN, rateD))
			}
		}
		// Planar video, dims [width, height, 3, frames].
		if d.Type == tensor.Uint8 && d.Dims[2] == 3 && d.Dims[0] > 0 && d.Dims[1] > 0 {
			out = append(out,
				caps.ForVideo(caps.RGBP, int(d.Dims[0]), int(d.Dims[1]), rateN, rateD),
				caps.ForVideo(caps.BGRP, int(d.Dims[0]), int(d.Dims[1]), rateN, rateD))
		}
		// Audio, dims [channels, frames]. The descriptor rate is samples
		// per second only when the denominator is 1.
		if af, ok := caps.AudioFormatForElementType(d.Type); ok && d.Dims[0] > 0 {
			rate := 0
			if req.RateD == 1 {
				rate = req.RateN
			}
			out = append(out, caps.ForAudio(af, int(d.Dims[0]), rate))
		}
		// Text pads into any fixed uint8 row.
		if d.Type == tensor.Uint8 && d.Dims[0] > 0 {
			out = append(out, caps.ForText(rateN, rateD))
		}
	}

	// Byte streams and tensor streams can satisfy any descriptor.
	out = append(out,
		caps.ForOctet(rateN, rateD),
		caps.ForTensorStream(rateN, rateD))
	return out
}
