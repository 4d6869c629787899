// Package formatting renders artifact sizes for the CLI and config, and
// extracts JSON from generated text.
package formatting

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const kibi = 1024

var units = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes renders n with base-1024 units, e.g. "1.5 KB". Byte counts
// below one kilobyte are printed without a fraction and negative precision
// is treated as zero.
func FormatBytes(n int64, precision int) string {
	if n < kibi && n > -kibi {
		return strconv.FormatInt(n, 10) + " B"
	}
	precision = max(precision, 0)

	size := float64(n)
	i := 0
	for (size >= kibi || size <= -kibi) && i < len(units)-1 {
		size /= kibi
		i++
	}

	return strconv.FormatFloat(size, 'f', precision, 64) + " " + units[i]
}

// ParseBytes parses sizes such as "64MB", "1.5 GB" or "2048". A bare number
// is a byte count and unit matching ignores case.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	number, unit := s, ""
	if split >= 0 {
		number, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if number == "" {
		return 0, fmt.Errorf("invalid byte size %q: missing number", s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	scale := 1.0
	if unit != "" {
		found := false
		for _, u := range units {
			if strings.EqualFold(u, unit) {
				found = true
				break
			}
			scale *= kibi
		}
		if !found {
			return 0, fmt.Errorf("invalid byte size %q: unknown unit %q", s, unit)
		}
	}

	return int64(value * scale), nil
}
