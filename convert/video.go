package convert

import (
	"github.com/tensorify/tensorconv/caps"
	"github.com/tensorify/tensorconv/tensor"
)

// videoLayout is the negotiated geometry of a raw video stream: the
// tensor layout plus the byte size of one source frame as the producer
// delivers it, including any per-row alignment padding.
type videoLayout struct {
	cfg           tensor.Config
	srcFrameSize  int
	removePadding bool
}

// parseVideo maps a raw video capability to a single-tensor layout.
// Packed layouts order dimensions as [channels, width, height, frames];
// the 3-plane layouts order as [width, height, 3, frames]. Producers pad
// each row to a 4-byte boundary; when the natural row width is not
// already aligned the layout requests per-row padding removal so emitted
// tensors are dense.
func parseVideo(v caps.Video) (videoLayout, error) {
	var l videoLayout

	elem := v.Format.ElementType()
	if !elem.Valid() {
		return l, configErrorf("video.format", "unsupported video format %q", v.Format)
	}
	if v.Width <= 0 || v.Height <= 0 {
		return l, configErrorf("video.size", "invalid geometry %dx%d", v.Width, v.Height)
	}
	rateN, rateD := v.RateN, v.RateD
	if rateD <= 0 {
		rateN, rateD = 0, 1
	}

	l.cfg = tensor.Config{RateN: rateN, RateD: rateD}
	l.cfg.Format = tensor.Static
	l.cfg.Num = 1
	info := &l.cfg.Tensors[0]
	info.Type = elem

	if v.Format.Planar() {
		// Each plane row is padded independently; a dense copy out of a
		// padded planar frame would need per-plane strides, which the
		// single contiguous tensor layout cannot express.
		rowBytes := v.Width * elem.Size()
		if rowBytes%4 != 0 {
			return l, configErrorf("video.size",
				"planar format %s requires width*%d divisible by 4, got width %d",
				v.Format, elem.Size(), v.Width)
		}
		info.Dims = [tensor.RankLimit]uint32{uint32(v.Width), uint32(v.Height), 3, 1}
		l.srcFrameSize = 3 * rowBytes * v.Height
		return l, nil
	}

	ch := v.Format.Channels()
	info.Dims = [tensor.RankLimit]uint32{uint32(ch), uint32(v.Width), uint32(v.Height), 1}

	rowBytes := ch * v.Width * elem.Size()
	stride := roundUp4(rowBytes)
	l.srcFrameSize = stride * v.Height
	l.removePadding = stride != rowBytes
	return l, nil
}

func roundUp4(n int) int {
	return (n + 3) &^ 3
}
