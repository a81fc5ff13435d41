package utils

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxCompareLen caps edit-distance input; the DP cost is quadratic in the
// shorter of the two lengths.
const maxCompareLen = 500

// Similarity returns the normalized edit-distance similarity of a and b in
// [0,1]. Both inputs are lowercased, trimmed and truncated to maxCompareLen
// runes before comparison. Two empty strings are treated as identical.
func Similarity(a, b string) float64 {
	normA := truncateRunes(strings.TrimSpace(strings.ToLower(a)))
	normB := truncateRunes(strings.TrimSpace(strings.ToLower(b)))

	lenA := len([]rune(normA))
	lenB := len([]rune(normB))
	maxLen := lenA
	if lenB > maxLen {
		maxLen = lenB
	}
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(normA, normB)
	return 1.0 - float64(distance)/float64(maxLen)
}

func truncateRunes(text string) string {
	runes := []rune(text)
	if len(runes) <= maxCompareLen {
		return text
	}
	return string(runes[:maxCompareLen])
}
