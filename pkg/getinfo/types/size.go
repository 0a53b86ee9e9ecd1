package types

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Binary (IEC) size units.
const (
	KiB uint64 = 1024
	MiB        = 1024 * KiB
	GiB        = 1024 * MiB
	TiB        = 1024 * GiB
)

var sizePattern = regexp.MustCompile(`(?i)^([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?)(?:i?B)?$`)

// ErrInvalidSize indicates that a size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ParseSize parses sizes such as "512", "100K", "10MB" or "1.5GiB".
// Unit letters are binary multiples; fractions are truncated to whole bytes.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	mult := uint64(1)
	switch strings.ToUpper(m[2]) {
	case "K":
		mult = KiB
	case "M":
		mult = MiB
	case "G":
		mult = GiB
	case "T":
		mult = TiB
	}

	bytes := value * float64(mult)
	if bytes > math.MaxUint64 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidSize, s)
	}
	return uint64(bytes), nil
}

// FormatSize renders a byte count with IEC units, e.g. "1.5 MiB".
func FormatSize(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// FormatOptionalSize renders an optional size, using "-" when unknown.
func FormatOptionalSize(p *uint64) string {
	if p == nil {
		return "-"
	}
	return FormatSize(*p)
}

// FormatCount renders a count with thousands separators, "-" when unknown.
func FormatCount(p *uint64) string {
	if p == nil {
		return "-"
	}
	return humanize.Comma(int64(*p))
}
