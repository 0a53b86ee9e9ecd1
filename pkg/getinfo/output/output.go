// Package output renders directory reports in the formats the CLI offers
// (pretty, plain, json, yaml). Formatters are looked up by name in a
// registry so the --output flag can select one at runtime.
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// Entry is one directory line of a report.
type Entry struct {
	Path   string                 `json:"path" yaml:"path"`
	Status types.ProcessingStatus `json:"status" yaml:"status"`
	Stats  types.DirectoryStats   `json:"stats" yaml:"stats"`
}

// Report is everything a formatter may render about one directory.
type Report struct {
	Entry

	// Mime is the extension breakdown, AllExtensions first. Empty unless
	// the directory is Ready.
	Mime []types.MimeSize `json:"mime,omitempty" yaml:"mime,omitempty"`

	// Children are the known immediate subdirectories, largest first.
	Children []Entry `json:"children,omitempty" yaml:"children,omitempty"`

	// History is the size trend from saved snapshots, oldest first.
	History []types.SizePoint `json:"history,omitempty" yaml:"history,omitempty"`

	Duration    time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	DaemonUp    bool          `json:"daemon_up" yaml:"daemon_up"`
	Interrupted bool          `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Warnings    []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// SortChildren orders children by total size descending, then path.
// Unknown sizes sort last.
func (r *Report) SortChildren() {
	sort.SliceStable(r.Children, func(i, j int) bool {
		a, b := r.Children[i].Stats.TotalSize, r.Children[j].Stats.TotalSize
		switch {
		case a == nil && b == nil:
			return r.Children[i].Path < r.Children[j].Path
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a > *b
		default:
			return r.Children[i].Path < r.Children[j].Path
		}
	})
}

// Formatter renders a report.
type Formatter interface {
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty formatter registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the registered formatter names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available lists the formatters in the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
