package importers

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Settings tunes the decoders built by NewRegistry.
type Settings struct {
	BarthWindow Window
}

// DefaultSettings returns the settings used when none are given.
func DefaultSettings() Settings {
	return Settings{BarthWindow: DefaultBarthWindow}
}

// Option modifies Settings.
type Option func(*Settings)

// WithBarthWindow sets the averaging window of the Barth decoder.
func WithBarthWindow(w Window) Option {
	return func(s *Settings) { s.BarthWindow = w }
}

// Entry describes one registered decoder.
type Entry struct {
	Label   string
	Pattern string
	Decoder Decoder
}

// Registry maps tester labels to decoders. It is built once by
// NewRegistry and is read-only afterwards.
type Registry struct {
	entries map[string]Entry
	labels  []string
}

// NewRegistry builds the registry of every supported tester.
func NewRegistry(log *zap.Logger, opts ...Option) *Registry {
	s := DefaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	r := &Registry{entries: make(map[string]Entry)}
	r.register(NewOryx(log))
	r.register(NewBarth(log, s.BarthWindow))
	r.register(NewHANWA(log))
	r.register(NewLAAS(log))
	r.register(NewSERMA(log))
	r.register(NewHPPI(log))
	sort.Strings(r.labels)
	return r
}

func (r *Registry) register(d Decoder) {
	key := strings.ToLower(d.Label())
	if _, dup := r.entries[key]; dup {
		panic(fmt.Sprintf("importers: decoder %q registered twice", d.Label()))
	}
	r.entries[key] = Entry{Label: d.Label(), Pattern: d.FilePattern(), Decoder: d}
	r.labels = append(r.labels, d.Label())
}

// Lookup returns the decoder registered under label, ignoring case.
func (r *Registry) Lookup(label string) (Decoder, error) {
	e, ok := r.entries[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownTester, label, strings.Join(r.labels, ", "))
	}
	return e.Decoder, nil
}

// Labels returns the registered labels in sorted order.
func (r *Registry) Labels() []string {
	return append([]string(nil), r.labels...)
}

// Entries returns the registered decoders sorted by label.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.labels))
	for _, l := range r.labels {
		out = append(out, r.entries[strings.ToLower(l)])
	}
	return out
}
