package conversion

import (
	"math"
	"path/filepath"
	"strings"
)

// DefaultOutputPath swaps the input's extension for .docx in the same directory.
func DefaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".docx"
}

// SizeMB converts bytes to mebibytes rounded to two decimals.
func SizeMB(size int64) float64 {
	return Round2(float64(size) / (1024 * 1024))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
