package util

import (
	"golang.org/x/text/unicode/norm"
)

// NormalizeSecret maps a human-typed secret to its NFKC form so that
// visually identical input from different keyboards hashes the same.
func NormalizeSecret(s string) string {
	return norm.NFKC.String(s)
}
