package caps

import (
	"testing"

	"github.com/tensorify/tensorconv/tensor"
)

func TestVideoFormatNamesRoundTrip(t *testing.T) {
	t.Parallel()

	for f := VideoFormat(0); f < videoFormatCount; f++ {
		got, err := ParseVideoFormat(f.String())
		if err != nil || got != f {
			t.Errorf("format %d: round trip via %q gave %v, %v", f, f.String(), got, err)
		}
	}
	if _, err := ParseVideoFormat("YUY2"); err == nil {
		t.Error("unsupported format accepted")
	}
}

func TestVideoFormatProperties(t *testing.T) {
	t.Parallel()

	if GRAY16LE.ElementType() != tensor.Uint16 {
		t.Error("GRAY16_LE element type")
	}
	if RGB.Channels() != 3 || BGRA.Channels() != 4 || GRAY8.Channels() != 1 {
		t.Error("channel counts")
	}
	if !RGBP.Planar() || RGB.Planar() {
		t.Error("planar classification")
	}
}

func TestVideoFormatsForChannels(t *testing.T) {
	t.Parallel()

	for channels, want := range map[int]int{1: 3, 3: 2, 4: 8, 2: 0} {
		if got := len(VideoFormatsForChannels(channels)); got != want {
			t.Errorf("%d channels: got %d formats, want %d", channels, got, want)
		}
	}
}

func TestAudioFormatRoundTrip(t *testing.T) {
	t.Parallel()

	for f := AudioFormat(0); f < audioFormatCount; f++ {
		got, err := ParseAudioFormat(f.String())
		if err != nil || got != f {
			t.Errorf("format %d: round trip via %q gave %v, %v", f, f.String(), got, err)
		}
		back, ok := AudioFormatForElementType(f.ElementType())
		if !ok || back != f {
			t.Errorf("format %v: element type reverse lookup gave %v, %v", f, back, ok)
		}
	}
}
