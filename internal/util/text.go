package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const nbsp = "\u00a0"

// NormalizeField cleans a raw field name or value before it enters a record.
// The result is stable under repeated application.
func NormalizeField(input string) string {
	s := strings.ReplaceAll(input, nbsp, "")
	s = strings.TrimSpace(s)
	if inner, ok := unwrapQuotes(s); ok {
		inner = strings.TrimSpace(inner)
		// one layer only: a nested pair would be stripped by the next call
		if _, nested := unwrapQuotes(inner); !nested {
			s = inner
		}
	}
	return s
}

func NormalizeFields(input []string) []string {
	out := make([]string, 0, len(input))
	for _, s := range input {
		out = append(out, NormalizeField(s))
	}
	return out
}

func unwrapQuotes(s string) (string, bool) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s, false
	}
	return s[1 : len(s)-1], true
}

func IsBlank(cells []string) bool {
	for _, c := range cells {
		if NormalizeField(c) != "" {
			return false
		}
	}
	return true
}

func ContentHash(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}
