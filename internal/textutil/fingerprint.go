package textutil

import (
	"math"
	"strings"
	"unicode"
)

// Fingerprint is a normalized token bag built from one release name.
type Fingerprint struct {
	terms map[string]float64
	norm  float64
}

// NewFingerprint tokenizes a release name into a term-frequency vector.
// Names that yield no tokens produce nil.
func NewFingerprint(name string) *Fingerprint {
	tokens := Tokenize(name)
	if len(tokens) == 0 {
		return nil
	}
	terms := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		terms[token]++
	}
	var sum float64
	for _, weight := range terms {
		sum += weight * weight
	}
	return &Fingerprint{terms: terms, norm: math.Sqrt(sum)}
}

// Tokenize lowercases a release name and splits it on the separators scene
// names use (dots, dashes, spaces, brackets). Single-character fragments
// like the channel digits in "DTS-HD.MA.5.1" carry no signal and are
// dropped; two-character codec and locale tags ("hd", "ma", "it") are kept.
func Tokenize(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, token := range fields {
		if len(token) >= 2 {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// TokenCount returns the number of distinct tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.terms)
}
