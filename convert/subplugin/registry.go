// Package subplugin provides the registry of external converters that
// handle media types the built-in parsers do not understand. The registry
// is read-mostly: lookups are lock-free, writes happen only at
// (un)registration, and a stream that resolved a converter at negotiation
// keeps its reference even if the converter is unregistered later.
package subplugin

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tensorify/tensorconv/caps"
	"github.com/tensorify/tensorconv/media"
	"github.com/tensorify/tensorconv/tensor"
)

// Converter turns frames of an externally defined media type into tensor
// units. Implementations must be safe for use by multiple streams unless
// bound per stream via Openable.
type Converter interface {
	// QueryCaps lists the capabilities the converter accepts.
	QueryCaps() []caps.Capability

	// OutConfig derives the output tensor layout for a capability, or
	// fails naming the unresolved field.
	OutConfig(c caps.Capability) (tensor.Config, error)

	// Convert transforms one media frame into raw tensor bytes and the
	// layout describing them. A nil frame result is a conversion failure.
	Convert(f *media.Frame) (*media.Frame, tensor.Config, error)
}

// Openable is implemented by converters that need per-stream setup, such
// as script interpreters. Open returns a converter bound to the option
// payload; if the bound converter implements io.Closer it is closed when
// the stream tears down.
type Openable interface {
	Open(option string) (Converter, error)
}

// ConvertFunc is a user callback registered for custom-code mode. It has
// the same contract as Converter.Convert.
type ConvertFunc func(f *media.Frame) (*media.Frame, tensor.Config, error)

// Registry maps names to converters and custom-code callbacks. The zero
// value is not usable; call NewRegistry.
type Registry struct {
	mu         sync.Mutex // serializes writers
	converters atomic.Pointer[map[string]Converter]
	callbacks  atomic.Pointer[map[string]ConvertFunc]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	conv := map[string]Converter{}
	cbs := map[string]ConvertFunc{}
	r.converters.Store(&conv)
	r.callbacks.Store(&cbs)
	return r
}

// Register installs a converter under name, replacing any previous entry
// with the same name. Streams already bound to the replaced converter
// keep using it.
func (r *Registry) Register(name string, c Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := copyMap(*r.converters.Load())
	next[name] = c
	r.converters.Store(&next)
}

// Unregister removes the named converter, reporting whether it existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := *r.converters.Load()
	if _, ok := cur[name]; !ok {
		return false
	}
	next := copyMap(cur)
	delete(next, name)
	r.converters.Store(&next)
	return true
}

// Find returns the converter registered under name.
func (r *Registry) Find(name string) (Converter, bool) {
	c, ok := (*r.converters.Load())[name]
	return c, ok
}

// FindByMedia returns a converter accepting the given media-type name,
// matching the registration name first and each converter's advertised
// capabilities second.
func (r *Registry) FindByMedia(mediaType string) (Converter, bool) {
	m := *r.converters.Load()
	if c, ok := m[mediaType]; ok {
		return c, true
	}
	for _, name := range sortedKeys(m) {
		for _, cap := range m[name].QueryCaps() {
			if cap.Name == mediaType {
				return m[name], true
			}
		}
	}
	return nil, false
}

// RegisterFunc installs a custom-code callback under name, replacing any
// previous callback with the same name.
func (r *Registry) RegisterFunc(name string, fn ConvertFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := copyMap(*r.callbacks.Load())
	next[name] = fn
	r.callbacks.Store(&next)
}

// UnregisterFunc removes the named callback, reporting whether it existed.
func (r *Registry) UnregisterFunc(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := *r.callbacks.Load()
	if _, ok := cur[name]; !ok {
		return false
	}
	next := copyMap(cur)
	delete(next, name)
	r.callbacks.Store(&next)
	return true
}

// FindFunc returns the callback registered under name.
func (r *Registry) FindFunc(name string) (ConvertFunc, bool) {
	fn, ok := (*r.callbacks.Load())[name]
	return fn, ok
}

// Names returns the sorted names of all registered converters.
func (r *Registry) Names() []string {
	return sortedKeys(*r.converters.Load())
}

func copyMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
