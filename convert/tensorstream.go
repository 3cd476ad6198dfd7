package convert

import (
	"github.com/tensorify/tensorconv/caps"
	"github.com/tensorify/tensorconv/media"
	"github.com/tensorify/tensorconv/tensor"
)

// parseTensorStream maps an already-tensorized stream to a static
// layout. Units arrive self-describing, one flexible header per tensor,
// so the committed shape is provisional until the first unit: an
// explicit override pins it, otherwise a placeholder is committed and
// replaced when data flows.
func parseTensorStream(t caps.Tensor, explicit *tensor.Group, framesPerTensor int) (cfg tensor.Config, frameSize int, err error) {
	if framesPerTensor > 1 {
		return cfg, 0, configErrorf("tensor.frames",
			"tensor streams are already framed, cannot accumulate %d per unit", framesPerTensor)
	}

	rateN, rateD := t.RateN, t.RateD
	if rateD <= 0 {
		rateN, rateD = 0, 1
	}
	cfg = tensor.Config{RateN: rateN, RateD: rateD}

	if explicit != nil && explicit.Validate() == nil {
		cfg.Group = *explicit
		cfg.Format = tensor.Static
		return cfg, int(cfg.Group.TotalSize()), nil
	}

	cfg.Format = tensor.Static
	cfg.Num = 1
	cfg.Tensors[0].Type = tensor.Uint8
	cfg.Tensors[0].Dims = [tensor.RankLimit]uint32{1}
	return cfg, 1, nil
}

// processTensorUnit splits an incoming self-describing unit and checks
// its layout against the committed descriptor. A mismatch is fatal when
// the shape was pinned explicitly; otherwise the stream adopts the
// unit's layout and re-announces. The stripped payload shares are left
// in pendingShares for emission.
func (e *Engine) processTensorUnit(f *media.Frame) (int, error) {
	group, shares, err := splitFlexUnit(f.Data)
	if err != nil {
		return 0, err
	}

	if !groupCompatible(&e.cfg.Group, &group) {
		if e.set.Shape != nil && e.set.Shape.Validate() == nil {
			return 0, dataErrorf("tensor.unit",
				"unit layout %s does not match the configured shape %s", &group, e.set.Shape)
		}
		// Adopting the unit's layout keeps the committed output format:
		// a downstream that negotiated flexible stays flexible.
		format := e.cfg.Format
		e.cfg.Group = group
		e.cfg.Format = format
		e.log.Info("tensor stream layout updated", "config", e.cfg.String())
		e.announce()
	}

	e.pendingShares = shares
	total := 0
	for _, s := range shares {
		total += len(s)
	}
	return total, nil
}

// splitFlexUnit walks a self-describing unit, parsing and stripping the
// per-tensor headers. It returns the static group the headers describe
// plus one zero-copy payload slice per tensor.
func splitFlexUnit(data []byte) (tensor.Group, [][]byte, error) {
	var g tensor.Group
	g.Format = tensor.Static

	var shares [][]byte
	offset := 0
	for offset < len(data) {
		if g.Num == tensor.CountLimit {
			return g, nil, dataErrorf("tensor.unit",
				"unit carries more than %d tensors", tensor.CountLimit)
		}
		meta, err := tensor.ParseMeta(data[offset:])
		if err != nil {
			return g, nil, &DataError{Field: "tensor.header", Err: err}
		}
		size := int(meta.PayloadSize())
		start := offset + tensor.HeaderSize
		if size <= 0 || start+size > len(data) {
			return g, nil, dataErrorf("tensor.header",
				"tensor %d payload of %d bytes exceeds unit", g.Num, size)
		}
		g.Tensors[g.Num] = tensor.Info{Type: meta.Type, Dims: meta.Dims}
		shares = append(shares, data[start:start+size:start+size])
		g.Num++
		offset = start + size
	}
	if g.Num == 0 {
		return g, nil, dataErrorf("tensor.unit", "empty unit")
	}
	return g, shares, nil
}
