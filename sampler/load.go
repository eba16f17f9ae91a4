package sampler

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/cwbudde/algo-jam/internal/wavio"
)

// Provider supplies decoded PCM for a sample source. Decoding and fetching
// happen behind it.
type Provider interface {
	Load(source string) (*Buffer, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(source string) (*Buffer, error)

func (f ProviderFunc) Load(source string) (*Buffer, error) { return f(source) }

// WAVProvider decodes WAV files and resamples them to SampleRate. Relative
// sources are resolved against Dir.
type WAVProvider struct {
	Dir        string
	SampleRate int
}

// Load implements Provider.
func (p WAVProvider) Load(source string) (*Buffer, error) {
	path := source
	if p.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(p.Dir, path)
	}
	data, rate, err := wavio.ReadMono(path)
	if err != nil {
		return nil, err
	}
	if p.SampleRate > 0 && rate != p.SampleRate {
		data, err = wavio.Resample(data, rate, p.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("resample %s: %w", path, err)
		}
		rate = p.SampleRate
	}
	return &Buffer{Data: data, SampleRate: rate}, nil
}

// Load builds a library from descriptor -> source pairs using provider.
// Descriptors are visited in sorted order so errors are deterministic.
func Load(name string, sources map[string]string, provider Provider) (*Library, error) {
	if provider == nil {
		return nil, fmt.Errorf("library %s: nil provider", name)
	}
	keys := make([]string, 0, len(sources))
	for k := range sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		buf, err := provider.Load(sources[k])
		if err != nil {
			return nil, fmt.Errorf("library %s: load %q: %w", name, sources[k], err)
		}
		entries = append(entries, Entry{Descriptor: k, Buffer: buf, Source: sources[k]})
	}
	return NewLibrary(name, entries)
}
