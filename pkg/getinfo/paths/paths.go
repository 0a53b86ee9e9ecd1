// Package paths implements unified path handling. A unified path is an
// absolute, cleaned path with symlinks resolved; every path comparison in the
// engine is done between unified paths.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotDirectory is returned by UnifyDir when the path is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Unify canonicalizes p into a unified path.
func Unify(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	return filepath.Clean(resolved), nil
}

// UnifyDir unifies p and checks that it names a directory.
func UnifyDir(p string) (string, error) {
	u, err := Unify(p)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(u)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", u, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", u, ErrNotDirectory)
	}
	return u, nil
}

// IsUnified reports whether p is already in canonical lexical form.
// It does not touch the filesystem.
func IsUnified(p string) bool {
	return filepath.IsAbs(p) && filepath.Clean(p) == p
}

// Parent returns the immediate parent of p, or "" when p is a filesystem root.
func Parent(p string) string {
	dir := filepath.Dir(p)
	if dir == p {
		return ""
	}
	return dir
}

// IsAncestorOrEqual reports whether anc is p or one of its ancestors.
// The comparison is component-wise: "/a" is not an ancestor of "/ab".
func IsAncestorOrEqual(anc, p string) bool {
	if anc == "" || p == "" {
		return false
	}
	if anc == p {
		return true
	}
	return strings.HasPrefix(p, withSeparator(anc))
}

// IsAncestor reports whether anc is a strict ancestor of p.
func IsAncestor(anc, p string) bool {
	return anc != p && IsAncestorOrEqual(anc, p)
}

// IsChild reports whether child is an immediate child of parent.
func IsChild(child, parent string) bool {
	return parent != "" && Parent(child) == parent
}

// DescendantPrefix returns the string prefix shared by every strict descendant of p.
func DescendantPrefix(p string) string {
	return withSeparator(p)
}

// Chain lists the directories from just below stop (or from root, or from
// the filesystem root) down to leaf, outermost first. leaf is always included.
func Chain(leaf, stop, root string) []string {
	var rev []string
	for p := leaf; ; {
		rev = append(rev, p)
		if p == root {
			break
		}
		parent := Parent(p)
		if parent == "" || parent == stop {
			break
		}
		p = parent
	}

	out := make([]string, len(rev))
	for i, p := range rev {
		out[len(rev)-1-i] = p
	}
	return out
}

// Roots returns the filesystem roots to scan for a whole-machine scan.
func Roots() []string {
	if runtime.GOOS != "windows" {
		return []string{string(filepath.Separator)}
	}
	var roots []string
	for c := 'A'; c <= 'Z'; c++ {
		drive := string(c) + `:\`
		if _, err := os.Stat(drive); err == nil {
			roots = append(roots, drive)
		}
	}
	return roots
}

func withSeparator(p string) string {
	if strings.HasSuffix(p, string(filepath.Separator)) {
		return p
	}
	return p + string(filepath.Separator)
}
