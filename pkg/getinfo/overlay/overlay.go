// Package overlay keeps per-subtree scan enable/disable overrides. A path is
// enabled unless its nearest ancestor (or itself) carries a disabling
// override. Only overrides that change the inherited value are stored.
package overlay

import (
	"fmt"
	"sort"
	"sync"

	"github.com/armon/go-radix"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/paths"
)

// Persister stores the complete override set after every change.
type Persister interface {
	SaveOverrides(overrides map[string]bool) error
}

// Entry is one stored override.
type Entry struct {
	Path    string `json:"path"`
	Enabled bool   `json:"enabled"`
}

// Overlay is a path-keyed override tree. It is safe for concurrent use.
type Overlay struct {
	mu      sync.RWMutex
	tree    *radix.Tree
	persist Persister
	log     *logging.Logger
}

// New returns an empty overlay. persist may be nil.
func New(persist Persister) *Overlay {
	return &Overlay{
		tree:    radix.New(),
		persist: persist,
		log:     logging.Get("overlay"),
	}
}

// Load replaces the overrides with saved ones, dropping any that are
// redundant. Nothing is persisted.
func (o *Overlay) Load(overrides map[string]bool) {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	// ancestors sort before their descendants
	sort.Strings(keys)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.tree = radix.New()
	for _, k := range keys {
		o.setLocked(k, overrides[k])
	}
	o.log.Debug("overrides loaded", "given", len(overrides), "kept", o.tree.Len())
}

// IsEnabled resolves path against the nearest override at or above it.
func (o *Overlay) IsEnabled(path string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if v, ok := o.nearestLocked(path); ok {
		return v
	}
	return true
}

// SetEnabled sets the effective value of path and every descendant.
// Overrides below path are discarded.
func (o *Overlay) SetEnabled(path string, enabled bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.setLocked(path, enabled)
	o.log.Info("scan override set", "path", path, "enabled", enabled, "overrides", o.tree.Len())

	if o.persist == nil {
		return nil
	}
	if err := o.persist.SaveOverrides(o.mapLocked()); err != nil {
		return fmt.Errorf("saving overrides: %w", err)
	}
	return nil
}

// Entries returns the stored overrides in path order.
func (o *Overlay) Entries() []Entry {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]Entry, 0, o.tree.Len())
	o.tree.Walk(func(k string, v interface{}) bool {
		out = append(out, Entry{Path: k, Enabled: v.(bool)})
		return false
	})
	return out
}

// Len returns the number of stored overrides.
func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.tree.Len()
}

func (o *Overlay) setLocked(path string, enabled bool) {
	o.tree.Delete(path)

	inherited, found := o.nearestLocked(paths.Parent(path))
	need := (found && inherited != enabled) || (!found && !enabled)

	var stale []string
	o.tree.WalkPrefix(paths.DescendantPrefix(path), func(k string, _ interface{}) bool {
		stale = append(stale, k)
		return false
	})
	for _, k := range stale {
		o.tree.Delete(k)
	}

	if need {
		o.tree.Insert(path, enabled)
	}
}

func (o *Overlay) nearestLocked(path string) (bool, bool) {
	for p := path; p != ""; p = paths.Parent(p) {
		if v, ok := o.tree.Get(p); ok {
			return v.(bool), true
		}
	}
	return false, false
}

func (o *Overlay) mapLocked() map[string]bool {
	out := make(map[string]bool, o.tree.Len())
	o.tree.Walk(func(k string, v interface{}) bool {
		out[k] = v.(bool)
		return false
	})
	return out
}
