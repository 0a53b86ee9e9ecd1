package output

import (
	"time"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// document is the machine-readable shape shared by the json and yaml
// formatters. Unknown stats are omitted rather than written as zero.
type document struct {
	Directory docEntry     `json:"directory" yaml:"directory"`
	Mime      []docMime    `json:"mime,omitempty" yaml:"mime,omitempty"`
	Children  []docEntry   `json:"children,omitempty" yaml:"children,omitempty"`
	History   []docHistory `json:"history,omitempty" yaml:"history,omitempty"`
	Meta      docMeta      `json:"meta" yaml:"meta"`
}

type docEntry struct {
	Path      string  `json:"path" yaml:"path"`
	Status    string  `json:"status" yaml:"status"`
	Subdirs   *uint64 `json:"subdirs,omitempty" yaml:"subdirs,omitempty"`
	Files     *uint64 `json:"files,omitempty" yaml:"files,omitempty"`
	Size      *uint64 `json:"size,omitempty" yaml:"size,omitempty"`
	SizeHuman string  `json:"size_human,omitempty" yaml:"size_human,omitempty"`
}

type docMime struct {
	Extension string  `json:"extension" yaml:"extension"`
	Files     uint64  `json:"files" yaml:"files"`
	Size      uint64  `json:"size" yaml:"size"`
	AvgSize   float64 `json:"avg_size" yaml:"avg_size"`
}

type docHistory struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Size      uint64    `json:"size" yaml:"size"`
}

type docMeta struct {
	Duration    string   `json:"duration,omitempty" yaml:"duration,omitempty"`
	DaemonUp    bool     `json:"daemon_up" yaml:"daemon_up"`
	Interrupted bool     `json:"interrupted" yaml:"interrupted"`
	Warnings    []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func newDocEntry(e Entry) docEntry {
	d := docEntry{
		Path:    e.Path,
		Status:  e.Status.String(),
		Subdirs: e.Stats.SubdirCount,
		Files:   e.Stats.FileCount,
		Size:    e.Stats.TotalSize,
	}
	if e.Stats.TotalSize != nil {
		d.SizeHuman = types.FormatSize(*e.Stats.TotalSize)
	}
	return d
}

func buildDocument(r *Report) document {
	doc := document{
		Directory: newDocEntry(r.Entry),
		Meta: docMeta{
			DaemonUp:    r.DaemonUp,
			Interrupted: r.Interrupted,
			Warnings:    r.Warnings,
		},
	}
	if r.Duration > 0 {
		doc.Meta.Duration = r.Duration.String()
	}
	for _, m := range r.Mime {
		doc.Mime = append(doc.Mime, docMime{Extension: m.Extension, Files: m.FileCount, Size: m.TotalSize, AvgSize: m.AvgSize})
	}
	for _, c := range r.Children {
		doc.Children = append(doc.Children, newDocEntry(c))
	}
	for _, p := range r.History {
		doc.History = append(doc.History, docHistory{Timestamp: p.Timestamp.UTC(), Size: p.TotalSize})
	}
	return doc
}
