// Package pipeline orchestrates the ingest-to-distribution data flow
// for a single stream, driving each received media frame through the
// conversion engine while collecting telemetry.
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tensorify/tensorconv/caps"
	"github.com/tensorify/tensorconv/convert"
	"github.com/tensorify/tensorconv/convert/subplugin"
	"github.com/tensorify/tensorconv/ingest"
)

// Snapshot is a point-in-time view of a pipeline's health.
type Snapshot struct {
	Key         string `json:"key"`
	UptimeMs    int64  `json:"uptimeMs"`
	FramesIn    int64  `json:"framesIn"`
	BytesIn     int64  `json:"bytesIn"`
	FramesFail  int64  `json:"framesFailed"`
	Descriptor  string `json:"descriptor"`
	EngineState string `json:"engineState"`
}

// Pipeline bridges a single stream's ingest connection and its relay:
// it negotiates the stream's capability with the conversion engine,
// then pushes every received frame through it.
type Pipeline struct {
	log        *slog.Logger
	streamKey  string
	source     *ingest.Stream
	engine     *convert.Engine
	capability caps.Capability
	startTime  time.Time

	framesIn   atomic.Int64
	bytesIn    atomic.Int64
	framesFail atomic.Int64
}

// New creates a Pipeline converting frames from source according to
// capability and pushing the resulting units into sink.
func New(streamKey string, source *ingest.Stream, sink convert.Downstream,
	reg *subplugin.Registry, set convert.Settings, capability caps.Capability) *Pipeline {

	log := slog.With("stream", streamKey)
	return &Pipeline{
		log:        log,
		streamKey:  streamKey,
		source:     source,
		engine:     convert.New(sink, reg, set, log),
		capability: capability,
		startTime:  time.Now(),
	}
}

// Snapshot returns current pipeline metrics.
func (p *Pipeline) Snapshot() Snapshot {
	cfg := p.engine.Config()
	return Snapshot{
		Key:         p.streamKey,
		UptimeMs:    time.Since(p.startTime).Milliseconds(),
		FramesIn:    p.framesIn.Load(),
		BytesIn:     p.bytesIn.Load(),
		FramesFail:  p.framesFail.Load(),
		Descriptor:  cfg.String(),
		EngineState: p.engine.State().String(),
	}
}

// Run negotiates the capability and converts frames until the source
// closes, the context is cancelled, or a frame fails conversion. A
// conversion failure drops the stream whole: partially converted data
// never reaches subscribers.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.engine.Negotiate(p.capability); err != nil {
		p.log.Error("negotiation failed", "capability", p.capability.String(), "error", err)
		return err
	}
	defer p.engine.Reset()

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-p.source.Frames():
			if !ok {
				p.log.Info("source closed",
					"frames", p.framesIn.Load(), "bytes", p.bytesIn.Load())
				return nil
			}
			p.framesIn.Add(1)
			p.bytesIn.Add(int64(len(frame.Data)))
			if err := p.engine.Push(frame); err != nil {
				p.framesFail.Add(1)
				p.log.Error("conversion failed", "error", err)
				return err
			}
		}
	}
}
