package overlay_test

import (
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/overlay"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/paths"
)

type memPersister struct {
	saved map[string]bool
	calls int
	err   error
}

func (m *memPersister) SaveOverrides(overrides map[string]bool) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.saved = overrides
	return nil
}

func TestSetEnabled_RedundantChildNotStored(t *testing.T) {
	o := overlay.New(nil)

	require.NoError(t, o.SetEnabled("/x", false))
	require.NoError(t, o.SetEnabled("/x/y", false))

	assert.Equal(t, []overlay.Entry{{Path: "/x", Enabled: false}}, o.Entries())
	assert.False(t, o.IsEnabled("/x/y"))
	assert.False(t, o.IsEnabled("/x/y/z"))
	assert.True(t, o.IsEnabled("/xy"), "sibling sharing a name prefix is unaffected")
}

func TestSetEnabled_DefaultEnabledNotStored(t *testing.T) {
	o := overlay.New(nil)
	require.NoError(t, o.SetEnabled("/a", true))
	assert.Zero(t, o.Len())
	assert.True(t, o.IsEnabled("/a/b"))
}

func TestSetEnabled_ReEnableInsideDisabled(t *testing.T) {
	o := overlay.New(nil)
	require.NoError(t, o.SetEnabled("/data", false))
	require.NoError(t, o.SetEnabled("/data/keep", true))

	assert.False(t, o.IsEnabled("/data/other"))
	assert.True(t, o.IsEnabled("/data/keep/sub"))
	assert.Equal(t, 2, o.Len())

	// re-disabling the child makes its override redundant
	require.NoError(t, o.SetEnabled("/data/keep", false))
	assert.Equal(t, 1, o.Len())
}

func TestSetEnabled_PurgesDescendants(t *testing.T) {
	o := overlay.New(nil)
	require.NoError(t, o.SetEnabled("/a/b", false))
	require.NoError(t, o.SetEnabled("/a/c/d", false))
	require.NoError(t, o.SetEnabled("/ab", false))

	require.NoError(t, o.SetEnabled("/a", true))
	assert.Equal(t, []overlay.Entry{{Path: "/ab", Enabled: false}}, o.Entries())
	assert.True(t, o.IsEnabled("/a/b"))
}

func TestSetEnabled_Persists(t *testing.T) {
	p := &memPersister{}
	o := overlay.New(p)

	require.NoError(t, o.SetEnabled("/m", false))
	assert.Equal(t, map[string]bool{"/m": false}, p.saved)

	p.err = errors.New("disk full")
	assert.ErrorContains(t, o.SetEnabled("/n", false), "disk full")
	assert.Equal(t, 2, p.calls)
}

func TestLoad_DropsRedundantEntries(t *testing.T) {
	o := overlay.New(nil)
	o.Load(map[string]bool{
		"/a":     false,
		"/a/b":   false,
		"/a/b/c": true,
		"/z":     true,
	})
	assert.Equal(t, []overlay.Entry{
		{Path: "/a", Enabled: false},
		{Path: "/a/b/c", Enabled: true},
	}, o.Entries())
}

// closedForm resolves path from a plain map: most specific ancestor wins.
func closedForm(explicit map[string]bool, path string) bool {
	for p := path; p != ""; p = paths.Parent(p) {
		if v, ok := explicit[p]; ok {
			return v
		}
	}
	return true
}

func TestSetEnabled_MinimalAndConsistent(t *testing.T) {
	all := []string{"/"}
	for _, a := range []string{"a", "b"} {
		pa := filepath.Join("/", a)
		all = append(all, pa)
		for _, b := range []string{"c", "d"} {
			pb := filepath.Join(pa, b)
			all = append(all, pb)
			for _, c := range []string{"e", "f"} {
				all = append(all, filepath.Join(pb, c))
			}
		}
	}

	rng := rand.New(rand.NewSource(42))
	o := overlay.New(nil)
	// effective value of every path, maintained by brute force
	want := make(map[string]bool)
	for _, p := range all {
		want[p] = true
	}

	for range 500 {
		target := all[rng.Intn(len(all))]
		enabled := rng.Intn(2) == 0
		require.NoError(t, o.SetEnabled(target, enabled))
		for _, p := range all {
			if paths.IsAncestorOrEqual(target, p) {
				want[p] = enabled
			}
		}

		explicit := make(map[string]bool)
		for _, e := range o.Entries() {
			explicit[e.Path] = e.Enabled
			assert.NotEqual(t, closedForm(explicit, paths.Parent(e.Path)), e.Enabled,
				"override %s is redundant", e.Path)
		}
		for _, p := range all {
			require.Equal(t, want[p], o.IsEnabled(p), p)
			require.Equal(t, want[p], closedForm(explicit, p), p)
		}
	}
}
