package output

import (
	"bytes"
	"encoding/json"
)

// JSONFormatter writes the report as one indented JSON document.
type JSONFormatter struct{}

// Format writes the report to w.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

func init() {
	Register("json", func() Formatter { return &JSONFormatter{} })
}

var _ Formatter = (*JSONFormatter)(nil)
