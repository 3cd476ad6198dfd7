package subplugin

import (
	"testing"

	"github.com/tensorify/tensorconv/caps"
	"github.com/tensorify/tensorconv/media"
	"github.com/tensorify/tensorconv/tensor"
)

type fakeConverter struct {
	mediaName string
	calls     int
}

func (f *fakeConverter) QueryCaps() []caps.Capability {
	return []caps.Capability{caps.ForCustom(f.mediaName)}
}

func (f *fakeConverter) OutConfig(caps.Capability) (tensor.Config, error) {
	cfg := tensor.Config{RateN: 0, RateD: 1}
	cfg.Format = tensor.Flexible
	cfg.Num = 1
	return cfg, nil
}

func (f *fakeConverter) Convert(frame *media.Frame) (*media.Frame, tensor.Config, error) {
	f.calls++
	cfg, _ := f.OutConfig(caps.Capability{})
	return frame, cfg, nil
}

func TestRegisterFindUnregister(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	c := &fakeConverter{mediaName: "image/jpeg"}
	r.Register("jpeg", c)

	got, ok := r.Find("jpeg")
	if !ok || got != Converter(c) {
		t.Fatal("Find did not return the registered converter")
	}

	if !r.Unregister("jpeg") {
		t.Error("Unregister reported missing entry")
	}
	if _, ok := r.Find("jpeg"); ok {
		t.Error("converter still found after Unregister")
	}
	if r.Unregister("jpeg") {
		t.Error("second Unregister reported success")
	}
}

func TestRegisterReplaces(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := &fakeConverter{mediaName: "image/jpeg"}
	second := &fakeConverter{mediaName: "image/jpeg"}
	r.Register("jpeg", first)
	r.Register("jpeg", second)

	got, _ := r.Find("jpeg")
	if got != Converter(second) {
		t.Error("re-registration did not replace the entry")
	}
}

func TestFindByMedia(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	c := &fakeConverter{mediaName: "image/png"}
	r.Register("png-handler", c)

	// Registration name match.
	if _, ok := r.FindByMedia("png-handler"); !ok {
		t.Error("lookup by registration name failed")
	}
	// Advertised capability match.
	if _, ok := r.FindByMedia("image/png"); !ok {
		t.Error("lookup by advertised media type failed")
	}
	if _, ok := r.FindByMedia("image/webp"); ok {
		t.Error("unknown media type resolved")
	}
}

// A stream that captured its converter reference at negotiation must be
// able to keep converting after the registry entry is removed.
func TestBindingSurvivesUnregistration(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	c := &fakeConverter{mediaName: "image/jpeg"}
	r.Register("jpeg", c)

	bound, _ := r.Find("jpeg")
	r.Unregister("jpeg")

	frame := media.NewFrame([]byte{1, 2, 3})
	out, _, err := bound.Convert(frame)
	if err != nil || out == nil {
		t.Fatalf("convert after unregistration failed: %v", err)
	}
	if c.calls != 1 {
		t.Errorf("converter calls: got %d, want 1", c.calls)
	}
}

func TestCallbacks(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.RegisterFunc("identity", func(f *media.Frame) (*media.Frame, tensor.Config, error) {
		cfg := tensor.Config{RateD: 1}
		cfg.Format = tensor.Flexible
		cfg.Num = 1
		return f, cfg, nil
	})

	if _, ok := r.FindFunc("identity"); !ok {
		t.Fatal("callback not found")
	}
	if !r.UnregisterFunc("identity") {
		t.Error("UnregisterFunc reported missing entry")
	}
	if _, ok := r.FindFunc("identity"); ok {
		t.Error("callback still found after UnregisterFunc")
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("b", &fakeConverter{})
	r.Register("a", &fakeConverter{})

	names := r.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names: got %v, want [a b]", names)
	}
}
