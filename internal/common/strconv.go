package common

import "strconv"

// AtoiDefault parses value as an int, returning def on empty or malformed
// input. Query-string pagination never fails hard on bad numbers.
func AtoiDefault(value string, def int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
