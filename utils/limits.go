package utils

import (
	"strconv"
	"strings"
)

func ParseIntDefault(s string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v >= 0 {
		return v
	}
	return def
}

// ClampLimit returns def for non-positive requests and never more than max.
func ClampLimit(requested, def, max int) int {
	if requested <= 0 {
		requested = def
	}
	if max > 0 && requested > max {
		return max
	}
	return requested
}
