package ingest

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName folds a source name into NFC form with collapsed whitespace,
// so that the same settlement arriving from different sources compares equal.
func NormalizeName(name string) string {
	name = norm.NFC.String(name)
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeRegionCode uppercases and trims a region code.
func NormalizeRegionCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
