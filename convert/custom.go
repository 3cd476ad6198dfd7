package convert

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tensorify/tensorconv/caps"
	"github.com/tensorify/tensorconv/convert/subplugin"
	"github.com/tensorify/tensorconv/media"
	"github.com/tensorify/tensorconv/tensor"
)

// Conversion modes routing a stream through a custom converter.
const (
	modeCode   = "custom-code"
	modeScript = "custom-script"
)

// scriptInterpreters maps script file extensions to the registered
// converter that runs them.
var scriptInterpreters = map[string]string{
	".py": "python3",
}

func parseMode(mode string) (kind, option string, err error) {
	kind, option, ok := strings.Cut(mode, ":")
	if !ok || option == "" {
		return "", "", configErrorf("mode", "mode %q is not of the form kind:option", mode)
	}
	return kind, option, nil
}

// negotiateCustom resolves the converter binding for a custom stream
// and derives its output descriptor. The binding is captured once here;
// later registry changes do not affect this stream.
func (e *Engine) negotiateCustom(c caps.Capability) (binding, tensor.Config, error) {
	var b binding
	var cfg tensor.Config

	if e.set.Mode == "" {
		conv, ok := e.findConverter(func(r *subplugin.Registry) (subplugin.Converter, bool) {
			return r.FindByMedia(c.Name)
		})
		if !ok {
			return b, cfg, &ConfigError{Field: "custom", Err: fmt.Errorf(
				"%w: no converter handles media type %q", ErrUnknownSubplugin, c.Name)}
		}
		b = binding{kind: bindConverter, name: c.Name, conv: conv}
		cfg, err := e.customOutConfig(conv, c)
		return b, cfg, err
	}

	kind, option, err := parseMode(e.set.Mode)
	if err != nil {
		return b, cfg, err
	}

	switch kind {
	case modeCode:
		var fn subplugin.ConvertFunc
		var ok bool
		if e.reg != nil {
			fn, ok = e.reg.FindFunc(option)
		}
		if !ok {
			return b, cfg, &ConfigError{Field: "mode", Err: fmt.Errorf(
				"%w: no callback registered as %q", ErrUnknownSubplugin, option)}
		}
		b = binding{kind: bindCallback, name: option, fn: fn}
		if peer := e.peerConfig(); peer != nil && peer.Format == tensor.Static && peer.Validate() == nil {
			cfg = *peer
		} else {
			cfg = placeholderConfig()
		}
		return b, cfg, nil

	case modeScript:
		interp, ok := scriptInterpreters[strings.ToLower(filepath.Ext(option))]
		if !ok {
			return b, cfg, configErrorf("mode", "no interpreter for script %q", option)
		}
		conv, ok := e.findConverter(func(r *subplugin.Registry) (subplugin.Converter, bool) {
			return r.Find(interp)
		})
		if !ok {
			return b, cfg, &ConfigError{Field: "mode", Err: fmt.Errorf(
				"%w: interpreter %q is not registered", ErrUnknownSubplugin, interp)}
		}
		b = binding{kind: bindConverter, name: interp, conv: conv}
		if op, isOpen := conv.(subplugin.Openable); isOpen {
			opened, err := op.Open(option)
			if err != nil {
				return b, cfg, &ConfigError{Field: "mode", Err: err}
			}
			b.conv = opened
			if cl, isCloser := opened.(io.Closer); isCloser {
				b.closer = cl
			}
		}
		cfg, err := e.customOutConfig(b.conv, c)
		return b, cfg, err
	}

	return b, cfg, configErrorf("mode", "unknown conversion mode %q", kind)
}

func (e *Engine) findConverter(find func(*subplugin.Registry) (subplugin.Converter, bool)) (subplugin.Converter, bool) {
	if e.reg == nil {
		return nil, false
	}
	return find(e.reg)
}

// customOutConfig prefers the peer's committed descriptor; the converter
// is only asked when the consumer has not pinned a static layout.
func (e *Engine) customOutConfig(conv subplugin.Converter, c caps.Capability) (tensor.Config, error) {
	if peer := e.peerConfig(); peer != nil && peer.Format == tensor.Static && peer.Validate() == nil {
		return *peer, nil
	}
	cfg, err := conv.OutConfig(c)
	if err != nil {
		return cfg, &ConfigError{Field: "custom", Err: err}
	}
	return cfg, nil
}

func placeholderConfig() tensor.Config {
	cfg := tensor.Config{RateN: 0, RateD: 1}
	cfg.Format = tensor.Static
	cfg.Num = 1
	cfg.Tensors[0].Type = tensor.Uint8
	cfg.Tensors[0].Dims = [tensor.RankLimit]uint32{1}
	return cfg
}

// processCustom runs one frame through the bound converter. The
// converter reports the layout of its own output, which may change
// mid-stream; a change re-announces before the unit is emitted.
func (e *Engine) processCustom(f *media.Frame) (*media.Frame, int, error) {
	var (
		out *media.Frame
		cfg tensor.Config
		err error
	)
	switch e.bound.kind {
	case bindCallback:
		out, cfg, err = e.bound.fn(f)
	case bindConverter:
		out, cfg, err = e.bound.conv.Convert(f)
	default:
		return nil, 0, dataErrorf("custom", "no converter bound")
	}
	if err != nil {
		return nil, 0, &DataError{Field: "custom", Err: fmt.Errorf("converter %q: %w", e.bound.name, err)}
	}
	if out == nil || len(out.Data) == 0 {
		return nil, 0, dataErrorf("custom", "converter %q produced no output", e.bound.name)
	}
	if !media.ValidTime(out.PTS) {
		out.PTS, out.DTS, out.Duration = f.PTS, f.DTS, f.Duration
	}

	// A converter emitting flexible output writes its own headers.
	e.noHeader = cfg.Format == tensor.Flexible

	if !e.cfg.Equal(&cfg) {
		e.cfg = cfg
		e.log.Info("custom converter layout updated", "config", e.cfg.String())
		e.announce()
	}
	return out, len(out.Data), nil
}

// Subplugins lists the registered custom converter names.
func (e *Engine) Subplugins() []string {
	if e.reg == nil {
		return nil
	}
	return e.reg.Names()
}
