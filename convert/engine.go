// Package convert implements the media-to-tensor conversion engine: it
// negotiates an upstream media capability into a tensor layout, then
// converts each media frame into tensor-stream units, aggregating or
// splitting frames as configured.
package convert

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tensorify/tensorconv/caps"
	"github.com/tensorify/tensorconv/convert/subplugin"
	"github.com/tensorify/tensorconv/media"
	"github.com/tensorify/tensorconv/tensor"
)

// State is the engine lifecycle state.
type State int

const (
	// StateUnconfigured means no capability has been negotiated; frames
	// are rejected.
	StateUnconfigured State = iota
	// StateReady means a layout is committed and the engine is between
	// frames.
	StateReady
	// StateProcessing means a frame is being converted.
	StateProcessing
	// StateError means a frame failed; everything is rejected until Reset.
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Downstream is the consumer side of the engine. AnnounceConfig is
// called whenever the committed descriptor changes, always before any
// unit that uses it. PeerConfig reports the descriptor the consumer
// itself wants, when it has one; the engine uses it to shape byte
// streams and custom streams that carry no shape of their own.
type Downstream interface {
	PeerConfig() (tensor.Config, bool)
	AnnounceConfig(cfg tensor.Config)
	PushUnit(u *tensor.Unit) error
}

// Settings are the per-stream conversion knobs, fixed before
// negotiation.
type Settings struct {
	// FramesPerTensor is how many media frames one emitted unit spans.
	FramesPerTensor int

	// SetTimestamp enables synthesis of missing presentation timestamps.
	SetTimestamp bool

	// Shape optionally pins the output layout. Mandatory for text,
	// optional for byte streams, and cross-checked against the derived
	// layout everywhere else.
	Shape *tensor.Group

	// Mode routes the stream through a custom converter instead of the
	// built-in parsers: "custom-code:NAME" for a registered callback,
	// "custom-script:PATH" for an interpreted script.
	Mode string
}

// DefaultSettings returns the settings a stream gets when the caller
// configures nothing.
func DefaultSettings() Settings {
	return Settings{FramesPerTensor: 1, SetTimestamp: true}
}

// Engine converts one stream. It is not safe for concurrent use; each
// stream owns its engine.
type Engine struct {
	log  *slog.Logger
	set  Settings
	reg  *subplugin.Registry
	sink Downstream

	state   State
	inMedia media.Type

	// committed conversion context, valid from negotiation to reset
	cfg           tensor.Config
	frameSize     int
	removePadding bool
	noHeader      bool
	bound         binding

	adapters      map[int64]*adapter
	pendingShares [][]byte

	announced     bool
	lastAnnounced tensor.Config

	oldTimestamp time.Duration
	startTime    time.Time

	segmentStart time.Duration
	byteStart    uint64
	needRebase   bool
}

type bindingKind int

const (
	bindNone bindingKind = iota
	bindCallback
	bindConverter
)

// binding is the custom-converter reference captured at negotiation.
// It stays valid even if the registry entry is removed afterwards.
type binding struct {
	kind   bindingKind
	name   string
	fn     subplugin.ConvertFunc
	conv   subplugin.Converter
	closer io.Closer
}

func (b *binding) close() {
	if b.closer != nil {
		b.closer.Close()
	}
	*b = binding{}
}

// New builds an engine pushing into sink. reg may be nil when no custom
// converters are needed.
func New(sink Downstream, reg *subplugin.Registry, set Settings, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if set.FramesPerTensor < 1 {
		set.FramesPerTensor = 1
	}
	return &Engine{
		log:          log.With("component", "convert"),
		set:          set,
		reg:          reg,
		sink:         sink,
		inMedia:      media.Invalid,
		adapters:     make(map[int64]*adapter),
		oldTimestamp: media.NoTimestamp,
		startTime:    time.Now(),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.state }

// Config returns the committed output descriptor. Only meaningful once
// negotiated.
func (e *Engine) Config() tensor.Config { return e.cfg }

// Negotiate commits the upstream capability, deriving and announcing
// the output tensor descriptor. It may be called again to renegotiate a
// live stream, but not while the engine is failed.
func (e *Engine) Negotiate(c caps.Capability) error {
	if e.state == StateError {
		return ErrStreamFailed
	}

	in := c.Media
	if e.set.Mode != "" {
		in = media.Any
	}

	var (
		cfg           tensor.Config
		frameSize     int
		removePadding bool
		err           error
	)
	framesDim := -1

	switch in {
	case media.Video:
		var l videoLayout
		l, err = parseVideo(c.Video)
		cfg, frameSize, removePadding = l.cfg, l.srcFrameSize, l.removePadding
		framesDim = 3
	case media.Audio:
		cfg, frameSize, err = parseAudio(c.Audio)
		framesDim = 1
	case media.Text:
		cfg, frameSize, err = parseText(c.Text, e.set.Shape)
		framesDim = 1
	case media.Octet:
		cfg, frameSize, err = parseOctet(c.Octet, e.set.Shape, e.peerConfig(), e.set.FramesPerTensor)
	case media.Tensor:
		cfg, frameSize, err = parseTensorStream(c.Tensor, e.set.Shape, e.set.FramesPerTensor)
	case media.Any:
		var b binding
		b, cfg, err = e.negotiateCustom(c)
		if err == nil {
			e.bound.close()
			e.bound = b
		}
	default:
		err = configErrorf("media", "invalid media type %v", c.Media)
	}
	if err != nil {
		return err
	}

	if framesDim >= 0 {
		cfg.Tensors[0].Dims[framesDim] = uint32(e.set.FramesPerTensor)
	}
	if verr := cfg.Validate(); verr != nil {
		return &ConfigError{Field: "layout", Err: verr}
	}

	// An explicit shape must agree with whatever the capability implies.
	if e.set.Shape != nil && (in == media.Video || in == media.Audio) {
		if e.set.Shape.Validate() == nil && !groupCompatible(e.set.Shape, &cfg.Group) {
			return configErrorf("shape",
				"configured shape %s does not match the derived layout %s",
				e.set.Shape, &cfg.Group)
		}
	}

	// A downstream that negotiated flexible output receives
	// self-describing units no matter which media class feeds it.
	// Custom converters decide their own output format.
	if in != media.Any {
		if peer := e.peerConfig(); peer != nil && peer.Format == tensor.Flexible {
			cfg.Format = tensor.Flexible
		}
		e.bound.close()
	}

	e.inMedia = in
	e.cfg = cfg
	e.frameSize = frameSize
	e.removePadding = removePadding
	e.noHeader = false
	e.state = StateReady

	e.log.Info("negotiated",
		"media", in,
		"config", e.cfg.String(),
		"frame_size", frameSize)
	e.announce()
	return nil
}

// Push converts one media frame, emitting zero or more units downstream.
// Any failure freezes the engine in the error state; callers must Reset
// before feeding more data.
func (e *Engine) Push(f *media.Frame) error {
	switch e.state {
	case StateUnconfigured:
		return ErrNotNegotiated
	case StateError:
		return ErrStreamFailed
	}
	if f == nil || len(f.Data) == 0 {
		e.state = StateError
		return ErrEmptyFrame
	}

	e.state = StateProcessing
	if err := e.process(f); err != nil {
		e.state = StateError
		e.log.Error("frame dropped", "media", e.inMedia, "err", err)
		return err
	}
	e.state = StateReady
	return nil
}

func (e *Engine) process(f *media.Frame) error {
	framesOut := e.set.FramesPerTensor
	bufSize := len(f.Data)
	frameSize := e.frameSize
	framesIn := 1
	in := f

	switch e.inMedia {
	case media.Video:
		d := &e.cfg.Tensors[0]
		unit := d.Type.Size() * int(d.Dims[0]) * int(d.Dims[1]) * int(d.Dims[2])
		if e.frameSize <= 0 || bufSize/e.frameSize != 1 {
			return dataErrorf("video.frame",
				"buffer of %d bytes does not hold one %d-byte frame", bufSize, e.frameSize)
		}
		if e.removePadding {
			in = e.stripRowPadding(f, unit)
		}
		frameSize = unit

	case media.Audio:
		if bufSize%frameSize != 0 {
			return dataErrorf("audio.frame",
				"buffer of %d bytes is not a multiple of the %d-byte audio frame", bufSize, frameSize)
		}
		framesIn = bufSize / frameSize

	case media.Text:
		if bufSize != frameSize {
			in = padText(f, frameSize)
		}

	case media.Octet:
		if e.cfg.Format == tensor.Flexible && e.frameSize == 0 {
			// Shapeless byte stream: each buffer is one unit sized by
			// its own length.
			e.cfg.Tensors[0].Dims[0] = uint32(bufSize)
			frameSize = bufSize
		} else {
			if bufSize%frameSize != 0 {
				return dataErrorf("octet.frame",
					"buffer of %d bytes is not a multiple of the %d-byte layout", bufSize, frameSize)
			}
			framesIn = bufSize / frameSize
		}

	case media.Tensor:
		var err error
		frameSize, err = e.processTensorUnit(f)
		if err != nil {
			return err
		}
		e.rebaseSegment(frameSize)
		e.applyTimestamp(f, 1)
		shares := e.pendingShares
		e.pendingShares = nil
		return e.emitShares(shares, f.PTS, f.DTS, f.Duration)

	case media.Any:
		var err error
		in, frameSize, err = e.processCustom(f)
		if err != nil {
			return err
		}

	default:
		return &InvariantError{Check: fmt.Sprintf("media type %v reached processing", e.inMedia)}
	}

	e.rebaseSegment(frameSize)
	e.applyTimestamp(in, framesIn)

	if framesIn == framesOut {
		return e.emitData(in.Data, in.PTS, in.DTS, in.Duration)
	}
	return e.chainChunks(in, framesIn, framesOut, frameSize)
}

// Reset drains and discards all buffered partial data, releases any
// custom binding, and returns the engine to the unconfigured state.
func (e *Engine) Reset() {
	for id, a := range e.adapters {
		a.clear()
		delete(e.adapters, id)
	}
	e.bound.close()

	e.state = StateUnconfigured
	e.inMedia = media.Invalid
	e.cfg = tensor.Config{}
	e.frameSize = 0
	e.removePadding = false
	e.noHeader = false
	e.pendingShares = nil

	e.announced = false
	e.oldTimestamp = media.NoTimestamp
	e.startTime = time.Now()
	e.segmentStart = 0
	e.byteStart = 0
	e.needRebase = false
}

// MarkByteSegment records that the upstream transport is byte addressed
// and positioned at start. The offset is converted to running time on
// the next frame, once the frame size is known.
func (e *Engine) MarkByteSegment(start uint64) {
	e.byteStart = start
	e.needRebase = true
}

// SetSegmentStart sets the running-time base used when synthesizing
// timestamps for rate-less streams.
func (e *Engine) SetSegmentStart(d time.Duration) {
	e.segmentStart = d
	e.needRebase = false
}

func (e *Engine) peerConfig() *tensor.Config {
	if e.sink == nil {
		return nil
	}
	if cfg, ok := e.sink.PeerConfig(); ok {
		return &cfg
	}
	return nil
}

func (e *Engine) announce() {
	if e.announced && e.lastAnnounced.Equal(&e.cfg) {
		return
	}
	e.sink.AnnounceConfig(e.cfg)
	e.lastAnnounced = e.cfg
	e.announced = true
}

// rebaseSegment converts a pending byte-addressed segment start to
// running time, once, now that the frame size is known.
func (e *Engine) rebaseSegment(frameSize int) {
	if !e.needRebase {
		return
	}
	e.needRebase = false
	e.segmentStart = 0
	if e.cfg.HasRate() && e.cfg.RateN > 0 && frameSize > 0 && e.byteStart > 0 {
		e.segmentStart = time.Duration(scale(
			e.byteStart*uint64(e.cfg.RateD),
			uint64(time.Second),
			uint64(e.cfg.RateN)*uint64(frameSize)))
	}
}

// applyTimestamp fills in missing duration and PTS on the frame about
// to be emitted, then remembers the PTS for the next synthesis step.
func (e *Engine) applyTimestamp(f *media.Frame, framesIn int) {
	if e.set.SetTimestamp {
		if !media.ValidTime(f.Duration) && e.cfg.HasRate() && e.cfg.RateN > 0 {
			f.Duration = time.Duration(scale(
				uint64(framesIn)*uint64(e.cfg.RateD),
				uint64(time.Second),
				uint64(e.cfg.RateN)))
		}
		if !media.ValidTime(f.PTS) {
			switch {
			case e.cfg.HasRate() && e.cfg.RateN > 0 && media.ValidTime(e.oldTimestamp):
				f.PTS = e.oldTimestamp + f.Duration
			case e.cfg.HasRate() && e.cfg.RateN > 0:
				f.PTS = e.segmentStart
			default:
				// No rate to extrapolate from; fall back to wall clock
				// relative to stream start.
				f.PTS = e.segmentStart + time.Since(e.startTime)
			}
		}
	}
	e.oldTimestamp = f.PTS
}

// chainChunks routes a frame through the aggregation buffer, emitting a
// unit for every framesOut frames that become available.
func (e *Engine) chainChunks(f *media.Frame, framesIn, framesOut, frameSize int) error {
	a := e.adapters[f.StreamID]
	if a == nil {
		a = &adapter{}
		e.adapters[f.StreamID] = a
	}

	dur := f.Duration
	if media.ValidTime(dur) && framesIn != framesOut {
		// The unit's span scales with how many source frames it covers.
		dur = scaleDuration(dur, int64(framesOut), int64(framesIn))
	}

	a.push(f)

	outSize := framesOut * frameSize
	for a.available() >= outSize {
		pts, ptsDist := a.prevPTS()
		dts, dtsDist := a.prevDTS()
		if framesIn > 1 && e.cfg.HasRate() && e.cfg.RateN > 0 {
			// The read position sits mid-chunk; advance the recorded
			// timestamp by the time the consumed bytes represent.
			if media.ValidTime(pts) {
				pts += e.bytesToTime(ptsDist, frameSize)
			}
			if media.ValidTime(dts) {
				dts += e.bytesToTime(dtsDist, frameSize)
			}
		}
		if err := e.emitData(a.take(outSize), pts, dts, dur); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) bytesToTime(dist uint64, frameSize int) time.Duration {
	return time.Duration(scale(
		dist*uint64(e.cfg.RateD),
		uint64(time.Second),
		uint64(e.cfg.RateN)*uint64(frameSize)))
}

// emitData slices one contiguous output buffer into tensor shares per
// the committed layout and hands the unit downstream.
func (e *Engine) emitData(data []byte, pts, dts, dur time.Duration) error {
	var shares [][]byte
	if e.inMedia == media.Octet && e.cfg.Num > 1 {
		offset := 0
		for n := 0; n < e.cfg.Num; n++ {
			size := int(e.cfg.Tensors[n].Size())
			if offset+size > len(data) {
				return &InvariantError{Check: fmt.Sprintf(
					"tensor %d needs %d bytes at offset %d of a %d-byte buffer",
					n, size, offset, len(data))}
			}
			shares = append(shares, data[offset:offset+size:offset+size])
			offset += size
		}
	} else {
		shares = [][]byte{data}
	}
	return e.emitShares(shares, pts, dts, dur)
}

func (e *Engine) emitShares(shares [][]byte, pts, dts, dur time.Duration) error {
	if e.cfg.Format == tensor.Flexible && !e.noHeader {
		tag := int8(media.Tensor)
		switch e.inMedia {
		case media.Video, media.Audio, media.Text, media.Octet:
			tag = int8(e.inMedia)
		}
		wrapped := make([][]byte, len(shares))
		for n, share := range shares {
			m := tensor.Meta{
				Format: tensor.Flexible,
				Type:   e.cfg.Tensors[n].Type,
				Media:  tag,
				Dims:   e.cfg.Tensors[n].Dims,
			}
			buf := make([]byte, 0, tensor.HeaderSize+len(share))
			buf = m.AppendHeader(buf)
			wrapped[n] = append(buf, share...)
		}
		shares = wrapped
	}

	u := &tensor.Unit{
		Tensors:  shares,
		Group:    e.cfg.Group,
		PTS:      pts,
		DTS:      dts,
		Duration: dur,
	}
	if err := e.sink.PushUnit(u); err != nil {
		return &DataError{Field: "sink", Err: err}
	}
	return nil
}

// stripRowPadding copies a packed video frame row by row, dropping the
// per-row alignment bytes the producer inserted.
func (e *Engine) stripRowPadding(f *media.Frame, unit int) *media.Frame {
	d := &e.cfg.Tensors[0]
	rowBytes := d.Type.Size() * int(d.Dims[0]) * int(d.Dims[1])
	stride := roundUp4(rowBytes)
	height := int(d.Dims[2])

	out := make([]byte, 0, unit)
	src := 0
	for row := 0; row < height; row++ {
		out = append(out, f.Data[src:src+rowBytes]...)
		src += stride
	}
	dense := *f
	dense.Data = out
	return &dense
}

// padText right-pads or truncates a text frame to the fixed layout width.
func padText(f *media.Frame, frameSize int) *media.Frame {
	out := make([]byte, frameSize)
	copy(out, f.Data)
	fixed := *f
	fixed.Data = out
	return &fixed
}

// groupCompatible reports whether two layouts describe the same tensors,
// treating unset trailing dimensions as 1.
func groupCompatible(a, b *tensor.Group) bool {
	if a.Num != b.Num {
		return false
	}
	for n := 0; n < a.Num; n++ {
		if a.Tensors[n].Type != b.Tensors[n].Type {
			return false
		}
		for i := 0; i < tensor.RankLimit; i++ {
			av, bv := a.Tensors[n].Dims[i], b.Tensors[n].Dims[i]
			if av == 0 {
				av = 1
			}
			if bv == 0 {
				bv = 1
			}
			if av != bv {
				return false
			}
		}
	}
	return true
}
