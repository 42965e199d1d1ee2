// Package intake pre-filters values extracted from an uploaded sheet before
// they reach normalization.
package intake

import (
	"regexp"
	"strings"
)

var numberRun = regexp.MustCompile(`\d{10,}`)

// LooksLikeNumber reports whether cell holds a run of at least ten digits.
func LooksLikeNumber(cell string) bool {
	return numberRun.MatchString(cell)
}

// Candidates keeps the trimmed cells that look like phone numbers, in sheet
// order, stopping once maxCount have been collected. A maxCount of zero or
// less disables the cap.
func Candidates(cells []string, maxCount int) []string {
	out := make([]string, 0, min(len(cells), max(maxCount, 0)))
	for _, cell := range cells {
		if maxCount > 0 && len(out) >= maxCount {
			break
		}
		cell = strings.TrimSpace(cell)
		if LooksLikeNumber(cell) {
			out = append(out, cell)
		}
	}
	return out
}
