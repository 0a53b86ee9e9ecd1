// Package fsiter provides a resumable directory-entry cursor. A cursor keeps
// its directory handle open between calls so a scan can stop at any entry and
// continue later from exactly the same position.
package fsiter

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// DefaultBatchSize is the number of entries read from the directory at once.
const DefaultBatchSize = 64

// Cursor iterates over the entries of one directory in the order returned by
// the operating system. It is not safe for concurrent use.
type Cursor struct {
	path  string
	dir   *os.File
	batch []fs.DirEntry
	pos   int
	size  int
	eof   bool
}

// Open opens a cursor positioned on the first entry of path.
func Open(path string, batchSize int) (*Cursor, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	dir, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening directory: %w", err)
	}
	return &Cursor{path: path, dir: dir, size: batchSize}, nil
}

// Path returns the directory the cursor iterates.
func (c *Cursor) Path() string {
	return c.path
}

// Current returns the entry under the cursor without moving it.
// It returns io.EOF once every entry has been consumed.
func (c *Cursor) Current() (fs.DirEntry, error) {
	for c.pos >= len(c.batch) {
		if c.eof || c.dir == nil {
			return nil, io.EOF
		}
		entries, err := c.dir.ReadDir(c.size)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading directory: %w", err)
		}
		if len(entries) == 0 {
			c.eof = true
			return nil, io.EOF
		}
		c.batch, c.pos = entries, 0
	}
	return c.batch[c.pos], nil
}

// Advance moves past the current entry.
func (c *Cursor) Advance() {
	if c.pos < len(c.batch) {
		c.pos++
	}
}

// AdvancePast moves past the current entry only if it is named name.
func (c *Cursor) AdvancePast(name string) bool {
	if c.pos < len(c.batch) && c.batch[c.pos].Name() == name {
		c.pos++
		return true
	}
	return false
}

// Close releases the directory handle. The cursor then reports io.EOF.
func (c *Cursor) Close() error {
	if c.dir == nil {
		return nil
	}
	err := c.dir.Close()
	c.dir = nil
	c.batch = nil
	c.eof = true
	return err
}
