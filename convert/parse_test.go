package convert

import (
	"errors"
	"testing"

	"github.com/tensorify/tensorconv/caps"
	"github.com/tensorify/tensorconv/media"
	"github.com/tensorify/tensorconv/tensor"
)

func TestParseVideoPacked(t *testing.T) {
	t.Parallel()

	l, err := parseVideo(caps.Video{Format: caps.RGB, Width: 640, Height: 480, RateN: 30, RateD: 1})
	if err != nil {
		t.Fatalf("parseVideo: %v", err)
	}
	want := [tensor.RankLimit]uint32{3, 640, 480, 1}
	if l.cfg.Tensors[0].Dims != want {
		t.Errorf("dims: got %v, want %v", l.cfg.Tensors[0].Dims, want)
	}
	if l.cfg.Tensors[0].Type != tensor.Uint8 {
		t.Errorf("type: got %v", l.cfg.Tensors[0].Type)
	}
	if l.srcFrameSize != 640*480*3 {
		t.Errorf("frame size: got %d, want %d", l.srcFrameSize, 640*480*3)
	}
	if l.removePadding {
		t.Error("aligned rows flagged for padding removal")
	}
	if l.cfg.RateN != 30 || l.cfg.RateD != 1 {
		t.Errorf("rate: got %d/%d", l.cfg.RateN, l.cfg.RateD)
	}
}

func TestParseVideoRowPadding(t *testing.T) {
	t.Parallel()

	// 14px RGB rows are 42 bytes, padded to 44 by the producer.
	l, err := parseVideo(caps.Video{Format: caps.RGB, Width: 14, Height: 14, RateN: 30, RateD: 1})
	if err != nil {
		t.Fatalf("parseVideo: %v", err)
	}
	if !l.removePadding {
		t.Error("unaligned rows not flagged for padding removal")
	}
	if l.srcFrameSize != 44*14 {
		t.Errorf("source frame size: got %d, want %d", l.srcFrameSize, 44*14)
	}
}

func TestParseVideoGray16(t *testing.T) {
	t.Parallel()

	l, err := parseVideo(caps.Video{Format: caps.GRAY16LE, Width: 320, Height: 240, RateN: 25, RateD: 1})
	if err != nil {
		t.Fatalf("parseVideo: %v", err)
	}
	if l.cfg.Tensors[0].Type != tensor.Uint16 {
		t.Errorf("type: got %v, want uint16", l.cfg.Tensors[0].Type)
	}
	if l.srcFrameSize != 320*240*2 {
		t.Errorf("frame size: got %d", l.srcFrameSize)
	}
}

func TestParseVideoPlanar(t *testing.T) {
	t.Parallel()

	l, err := parseVideo(caps.Video{Format: caps.RGBP, Width: 640, Height: 480, RateN: 30, RateD: 1})
	if err != nil {
		t.Fatalf("parseVideo: %v", err)
	}
	want := [tensor.RankLimit]uint32{640, 480, 3, 1}
	if l.cfg.Tensors[0].Dims != want {
		t.Errorf("dims: got %v, want %v", l.cfg.Tensors[0].Dims, want)
	}
	if l.srcFrameSize != 640*480*3 {
		t.Errorf("frame size: got %d", l.srcFrameSize)
	}

	// Planar frames with padded rows cannot be expressed as one dense
	// tensor, so an unaligned width is a negotiation failure.
	_, err = parseVideo(caps.Video{Format: caps.RGBP, Width: 14, Height: 14, RateN: 30, RateD: 1})
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Errorf("unaligned planar width: got %v, want ConfigError", err)
	}
}

func TestParseAudio(t *testing.T) {
	t.Parallel()

	cfg, frameSize, err := parseAudio(caps.Audio{Format: caps.S16, Channels: 2, Rate: 44100})
	if err != nil {
		t.Fatalf("parseAudio: %v", err)
	}
	if cfg.Tensors[0].Type != tensor.Int16 {
		t.Errorf("type: got %v", cfg.Tensors[0].Type)
	}
	if cfg.Tensors[0].Dims[0] != 2 {
		t.Errorf("channels dim: got %d", cfg.Tensors[0].Dims[0])
	}
	if frameSize != 4 {
		t.Errorf("frame size: got %d, want 4", frameSize)
	}
	if cfg.RateN != 44100 || cfg.RateD != 1 {
		t.Errorf("rate: got %d/%d", cfg.RateN, cfg.RateD)
	}

	if _, _, err := parseAudio(caps.Audio{Format: caps.S16, Channels: 0, Rate: 44100}); err == nil {
		t.Error("zero channels accepted")
	}
}

func TestParseTextNeedsShape(t *testing.T) {
	t.Parallel()

	_, _, err := parseText(caps.Text{}, nil)
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("missing shape: got %v, want ConfigError", err)
	}

	shape := &tensor.Group{Num: 1}
	shape.Tensors[0] = tensor.Info{Type: tensor.Uint8, Dims: [tensor.RankLimit]uint32{30}}
	cfg, frameSize, err := parseText(caps.Text{RateN: 10, RateD: 1}, shape)
	if err != nil {
		t.Fatalf("parseText: %v", err)
	}
	if frameSize != 30 {
		t.Errorf("frame size: got %d, want 30", frameSize)
	}
	if cfg.Tensors[0].Type != tensor.Uint8 {
		t.Errorf("type: got %v", cfg.Tensors[0].Type)
	}
}

func TestParseOctetRejectsAccumulation(t *testing.T) {
	t.Parallel()

	// Flexible fallback cannot accumulate.
	if _, _, err := parseOctet(caps.Octet{}, nil, nil, 2); err == nil {
		t.Error("flexible byte stream with frames-per-tensor 2 accepted")
	}

	// Multi-tensor layouts cannot accumulate either.
	shape := &tensor.Group{Num: 2}
	shape.Tensors[0] = tensor.Info{Type: tensor.Uint8, Dims: [tensor.RankLimit]uint32{4}}
	shape.Tensors[1] = tensor.Info{Type: tensor.Uint8, Dims: [tensor.RankLimit]uint32{2}}
	if _, _, err := parseOctet(caps.Octet{}, shape, nil, 2); err == nil {
		t.Error("multi-tensor byte stream with frames-per-tensor 2 accepted")
	}

	// A single static tensor may.
	single := &tensor.Group{Num: 1}
	single.Tensors[0] = tensor.Info{Type: tensor.Float32, Dims: [tensor.RankLimit]uint32{4}}
	cfg, frameSize, err := parseOctet(caps.Octet{}, single, nil, 2)
	if err != nil {
		t.Fatalf("parseOctet: %v", err)
	}
	if cfg.Format != tensor.Static || frameSize != 16 {
		t.Errorf("got format %v frame size %d", cfg.Format, frameSize)
	}
}

func TestParseOctetPeerShape(t *testing.T) {
	t.Parallel()

	peer := &tensor.Config{RateD: 1}
	peer.Format = tensor.Static
	peer.Num = 1
	peer.Tensors[0] = tensor.Info{Type: tensor.Float32, Dims: [tensor.RankLimit]uint32{4, 1}}

	cfg, frameSize, err := parseOctet(caps.Octet{}, nil, peer, 1)
	if err != nil {
		t.Fatalf("parseOctet: %v", err)
	}
	if cfg.Format != tensor.Static {
		t.Errorf("format: got %v", cfg.Format)
	}
	if frameSize != 16 {
		t.Errorf("frame size: got %d, want 16", frameSize)
	}
}

func TestParseTensorStreamRejectsAccumulation(t *testing.T) {
	t.Parallel()

	if _, _, err := parseTensorStream(caps.Tensor{}, nil, 2); err == nil {
		t.Error("tensor stream with frames-per-tensor 2 accepted")
	}
}

// A descriptor derived from a capability must round-trip: the reverse
// query offers the original capability back, and parsing that offer
// reproduces the descriptor.
func TestReverseQueryRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("video", func(t *testing.T) {
		t.Parallel()
		src := caps.Video{Format: caps.RGB, Width: 640, Height: 480, RateN: 30, RateD: 1}
		l, err := parseVideo(src)
		if err != nil {
			t.Fatal(err)
		}
		var match *caps.Capability
		for _, c := range PossibleSources(l.cfg) {
			if c.Media == media.Video && c.Video == src {
				match = &c
				break
			}
		}
		if match == nil {
			t.Fatalf("reverse query did not offer %v", src)
		}
		back, err := parseVideo(match.Video)
		if err != nil {
			t.Fatal(err)
		}
		if !back.cfg.Equal(&l.cfg) {
			t.Errorf("round trip changed descriptor: %s vs %s", &back.cfg, &l.cfg)
		}
	})

	t.Run("audio", func(t *testing.T) {
		t.Parallel()
		src := caps.Audio{Format: caps.F32, Channels: 2, Rate: 48000}
		cfg, _, err := parseAudio(src)
		if err != nil {
			t.Fatal(err)
		}
		var match *caps.Capability
		for _, c := range PossibleSources(cfg) {
			if c.Media == media.Audio && c.Audio == src {
				match = &c
				break
			}
		}
		if match == nil {
			t.Fatalf("reverse query did not offer %v", src)
		}
		back, _, err := parseAudio(match.Audio)
		if err != nil {
			t.Fatal(err)
		}
		if !back.Equal(&cfg) {
			t.Errorf("round trip changed descriptor: %s vs %s", &back, &cfg)
		}
	})

	t.Run("octet always offered", func(t *testing.T) {
		t.Parallel()
		var cfg tensor.Config
		cfg.Format = tensor.Flexible
		cfg.Num = 1
		found := false
		for _, c := range PossibleSources(cfg) {
			if c.Media == media.Octet {
				found = true
			}
		}
		if !found {
			t.Error("byte stream missing from reverse query")
		}
	})
}
