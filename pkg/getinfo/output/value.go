package output

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// EncodeValue writes v to w when format is a structured one (json, yaml)
// and reports whether it did. Commands that print lists rather than a
// Report use it and fall back to their own text layout.
func EncodeValue(w *bytes.Buffer, format string, v any) (bool, error) {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return true, err
		}
		return true, encoder.Close()
	default:
		return false, nil
	}
}
