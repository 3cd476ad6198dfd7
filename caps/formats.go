package caps

import (
	"fmt"

	"github.com/tensorify/tensorconv/tensor"
)

// VideoFormat identifies a raw video pixel layout.
type VideoFormat int

// Supported video formats. All packed layouts store pixels interleaved
// row by row; RGBP and BGRP are planar with three separate planes.
const (
	GRAY8 VideoFormat = iota
	GRAY16LE
	GRAY16BE
	RGB
	BGR
	RGBx
	BGRx
	XRGB
	XBGR
	RGBA
	BGRA
	ARGB
	ABGR
	RGBP
	BGRP

	videoFormatCount
)

var videoFormatNames = [videoFormatCount]string{
	"GRAY8", "GRAY16_LE", "GRAY16_BE", "RGB", "BGR",
	"RGBx", "BGRx", "xRGB", "xBGR", "RGBA", "BGRA", "ARGB", "ABGR",
	"RGBP", "BGRP",
}

func (f VideoFormat) String() string {
	if f < 0 || f >= videoFormatCount {
		return "unknown"
	}
	return videoFormatNames[f]
}

// ParseVideoFormat parses a video format name such as "RGB" or "GRAY8".
func ParseVideoFormat(s string) (VideoFormat, error) {
	for f := VideoFormat(0); f < videoFormatCount; f++ {
		if videoFormatNames[f] == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("caps: unknown video format %q", s)
}

// Planar reports whether the format stores each color component in a
// separate plane.
func (f VideoFormat) Planar() bool {
	return f == RGBP || f == BGRP
}

// Channels returns the per-pixel channel count (or plane count for
// planar formats).
func (f VideoFormat) Channels() int {
	switch f {
	case GRAY8, GRAY16LE, GRAY16BE:
		return 1
	case RGB, BGR, RGBP, BGRP:
		return 3
	case RGBx, BGRx, XRGB, XBGR, RGBA, BGRA, ARGB, ABGR:
		return 4
	}
	return 0
}

// ElementType returns the tensor element type of one color component.
func (f VideoFormat) ElementType() tensor.ElementType {
	switch f {
	case GRAY16LE, GRAY16BE:
		return tensor.Uint16
	case GRAY8, RGB, BGR, RGBx, BGRx, XRGB, XBGR, RGBA, BGRA, ARGB, ABGR, RGBP, BGRP:
		return tensor.Uint8
	}
	return tensor.NoElementType
}

// VideoFormatsForChannels returns the packed formats that produce the
// given channel count, used by the reverse capability query.
func VideoFormatsForChannels(channels int) []VideoFormat {
	switch channels {
	case 1:
		return []VideoFormat{GRAY8, GRAY16LE, GRAY16BE}
	case 3:
		return []VideoFormat{RGB, BGR}
	case 4:
		return []VideoFormat{RGBx, BGRx, XRGB, XBGR, RGBA, BGRA, ARGB, ABGR}
	}
	return nil
}

// AudioFormat identifies a raw audio sample layout.
type AudioFormat int

// Supported audio sample formats.
const (
	S8 AudioFormat = iota
	U8
	S16
	U16
	S32
	U32
	F32
	F64

	audioFormatCount
)

var audioFormatNames = [audioFormatCount]string{
	"S8", "U8", "S16", "U16", "S32", "U32", "F32", "F64",
}

func (f AudioFormat) String() string {
	if f < 0 || f >= audioFormatCount {
		return "unknown"
	}
	return audioFormatNames[f]
}

// ParseAudioFormat parses an audio format name such as "S16" or "F32".
func ParseAudioFormat(s string) (AudioFormat, error) {
	for f := AudioFormat(0); f < audioFormatCount; f++ {
		if audioFormatNames[f] == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("caps: unknown audio format %q", s)
}

// ElementType returns the tensor element type of one sample.
func (f AudioFormat) ElementType() tensor.ElementType {
	switch f {
	case S8:
		return tensor.Int8
	case U8:
		return tensor.Uint8
	case S16:
		return tensor.Int16
	case U16:
		return tensor.Uint16
	case S32:
		return tensor.Int32
	case U32:
		return tensor.Uint32
	case F32:
		return tensor.Float32
	case F64:
		return tensor.Float64
	}
	return tensor.NoElementType
}

// AudioFormatForElementType returns the sample format producing the given
// element type, used by the reverse capability query. The second return
// is false for element types no audio stream can produce.
func AudioFormatForElementType(t tensor.ElementType) (AudioFormat, bool) {
	switch t {
	case tensor.Int8:
		return S8, true
	case tensor.Uint8:
		return U8, true
	case tensor.Int16:
		return S16, true
	case tensor.Uint16:
		return U16, true
	case tensor.Int32:
		return S32, true
	case tensor.Uint32:
		return U32, true
	case tensor.Float32:
		return F32, true
	case tensor.Float64:
		return F64, true
	}
	return 0, false
}
