package match

import (
	"math"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Scorer rates the similarity of two strings on a 0-100 scale
type Scorer func(a, b string) int

// Ratio is the normalized Indel similarity of a and b, 0-100:
//
//	100 * (1 - indel(a, b) / (len(a) + len(b)))
//
// where indel counts single-rune insertions and deletions and lengths are in
// runes. Halves round to even. It is case-sensitive and applies no
// preprocessing. Either string empty scores 0.
func Ratio(a, b string) int {
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}

	total := float64(la + lb)
	distance := float64(edlib.LCSEditDistance(a, b))

	return int(math.RoundToEven(100 * (total - distance) / total))
}
