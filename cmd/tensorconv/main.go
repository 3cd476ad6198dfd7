package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/tensorify/tensorconv/caps"
	"github.com/tensorify/tensorconv/certs"
	"github.com/tensorify/tensorconv/convert"
	"github.com/tensorify/tensorconv/convert/subplugin"
	"github.com/tensorify/tensorconv/distribution"
	"github.com/tensorify/tensorconv/ingest"
	srtingest "github.com/tensorify/tensorconv/ingest/srt"
	"github.com/tensorify/tensorconv/pipeline"
	"github.com/tensorify/tensorconv/stream"
	"github.com/tensorify/tensorconv/tensor"
)

var version = "dev"

func main() {
	var (
		srtAddr  = flag.String("srt-addr", envOr("SRT_ADDR", ":6000"), "SRT ingest listen address")
		quicAddr = flag.String("quic-addr", envOr("QUIC_ADDR", ":4443"), "QUIC distribution listen address")

		mediaName   = flag.String("media", "octet", "input media class: video, audio, text, octet, tensor, custom")
		videoFormat = flag.String("video-format", "RGB", "video pixel format, e.g. RGB, BGRx, GRAY8")
		videoWidth  = flag.Int("width", 640, "video frame width")
		videoHeight = flag.Int("height", 480, "video frame height")
		framerate   = flag.String("framerate", "0/1", "frame rate fraction, e.g. 30/1")
		audioFormat = flag.String("audio-format", "S16", "audio sample format, e.g. S16, F32")
		audioChans  = flag.Int("channels", 2, "audio channel count")
		audioRate   = flag.Int("rate", 48000, "audio sample rate")
		customType  = flag.String("custom-type", "", "media-type name for custom converter lookup")

		framesPerTensor = flag.Int("frames-per-tensor", 1, "media frames per emitted tensor unit")
		inputDim        = flag.String("input-dim", "", `explicit tensor dimensions, e.g. "3:224:224" or comma-separated per tensor`)
		inputType       = flag.String("input-type", "", `explicit element types, e.g. "uint8,float32"`)
		mode            = flag.String("mode", "", "conversion mode: custom-code:NAME or custom-script:PATH")
		setTimestamp    = flag.Bool("set-timestamp", true, "synthesize missing presentation timestamps")

		debug = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	capability, err := buildCapability(*mediaName, *videoFormat, *videoWidth, *videoHeight,
		*framerate, *audioFormat, *audioChans, *audioRate, *customType)
	if err != nil {
		slog.Error("invalid input capability", "error", err)
		os.Exit(1)
	}
	settings, err := buildSettings(*inputDim, *inputType, *framesPerTensor, *setTimestamp, *mode)
	if err != nil {
		slog.Error("invalid conversion settings", "error", err)
		os.Exit(1)
	}

	cert, err := certs.Generate(14 * 24 * time.Hour)
	if err != nil {
		slog.Error("failed to generate cert", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	a := &app{
		mgr:        stream.NewManager(nil),
		converters: subplugin.NewRegistry(),
		capability: capability,
		settings:   settings,
		relays:     make(map[string]*distribution.Relay),
		pipelines:  make(map[string]*pipeline.Pipeline),
	}

	slog.Info("tensorconv starting",
		"version", version,
		"srt", *srtAddr,
		"quic", *quicAddr,
		"media", capability.String(),
		"cert_hash", cert.FingerprintBase64(),
	)

	g, ctx := errgroup.WithContext(ctx)

	// Create the registry after the errgroup so the stream callback
	// captures the errgroup-derived context, ensuring pipelines shut
	// down when any component fails.
	registry := ingest.NewRegistry(func(key string, s *ingest.Stream) {
		a.handleNewStream(ctx, key, s)
	})

	srtSrv := srtingest.NewServer(*srtAddr, registry, nil)
	quicSrv := distribution.NewServer(*quicAddr, cert, a.lookupRelay, nil)

	g.Go(func() error {
		return srtSrv.Start(ctx)
	})
	g.Go(func() error {
		return quicSrv.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

type app struct {
	mgr        *stream.Manager
	converters *subplugin.Registry
	capability caps.Capability
	settings   convert.Settings

	mu        sync.RWMutex
	relays    map[string]*distribution.Relay
	pipelines map[string]*pipeline.Pipeline
}

func (a *app) lookupRelay(key string) *distribution.Relay {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.relays[key]
}

func (a *app) registerStream(key string) *distribution.Relay {
	relay := distribution.NewRelay(slog.With("stream", key))
	a.mu.Lock()
	a.relays[key] = relay
	a.mu.Unlock()
	return relay
}

func (a *app) setPipeline(key string, p *pipeline.Pipeline) {
	a.mu.Lock()
	a.pipelines[key] = p
	a.mu.Unlock()
}

// teardownStream removes all resources for a stream across the
// distribution layer and stream manager in a single call.
func (a *app) teardownStream(key string) {
	a.mu.Lock()
	delete(a.relays, key)
	delete(a.pipelines, key)
	a.mu.Unlock()
	a.mgr.Remove(key)
}

func (a *app) handleNewStream(ctx context.Context, key string, s *ingest.Stream) {
	slog.Info("new stream from ingest", "key", key)

	if _, created := a.mgr.Create(key); !created {
		slog.Warn("rejecting duplicate stream connection", "key", key)
		return
	}
	defer a.teardownStream(key)

	relay := a.registerStream(key)

	p := pipeline.New(key, s, relay, a.converters, a.settings, a.capability)
	a.setPipeline(key, p)

	if err := p.Run(ctx); err != nil {
		slog.Error("pipeline error", "stream", key, "error", err)
	}
	slog.Info("stream ended", "key", key,
		"units", relay.UnitsPushed(), "bytes", relay.BytesPushed())
}

func buildCapability(mediaName, videoFormat string, width, height int, framerate,
	audioFormat string, channels, rate int, customType string) (caps.Capability, error) {

	rateN, rateD, err := parseFraction(framerate)
	if err != nil {
		return caps.Capability{}, err
	}

	switch mediaName {
	case "video":
		f, err := caps.ParseVideoFormat(videoFormat)
		if err != nil {
			return caps.Capability{}, err
		}
		return caps.ForVideo(f, width, height, rateN, rateD), nil
	case "audio":
		f, err := caps.ParseAudioFormat(audioFormat)
		if err != nil {
			return caps.Capability{}, err
		}
		return caps.ForAudio(f, channels, rate), nil
	case "text":
		return caps.ForText(rateN, rateD), nil
	case "octet":
		return caps.ForOctet(rateN, rateD), nil
	case "tensor":
		return caps.ForTensorStream(rateN, rateD), nil
	case "custom":
		if customType == "" {
			return caps.Capability{}, fmt.Errorf("custom media needs --custom-type")
		}
		return caps.ForCustom(customType), nil
	}
	return caps.Capability{}, fmt.Errorf("unknown media class %q", mediaName)
}

func buildSettings(dims, types string, framesPerTensor int, setTimestamp bool, mode string) (convert.Settings, error) {
	set := convert.DefaultSettings()
	set.FramesPerTensor = framesPerTensor
	set.SetTimestamp = setTimestamp
	set.Mode = mode

	if dims != "" || types != "" {
		g := &tensor.Group{}
		if dims != "" {
			if _, err := g.ParseGroupDims(dims); err != nil {
				return set, err
			}
		}
		if types != "" {
			if _, err := g.ParseGroupTypes(types); err != nil {
				return set, err
			}
		}
		set.Shape = g
	}
	return set, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseFraction(s string) (int, int, error) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		den = "1"
	}
	var n, d int
	if _, err := fmt.Sscanf(num, "%d", &n); err != nil {
		return 0, 0, fmt.Errorf("invalid fraction %q", s)
	}
	if _, err := fmt.Sscanf(den, "%d", &d); err != nil || d <= 0 {
		return 0, 0, fmt.Errorf("invalid fraction %q", s)
	}
	return n, d, nil
}
