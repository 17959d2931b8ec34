// internal/drill/pattern.go
package drill

import (
	"math"
	"math/rand/v2"
	"strings"

	"github.com/ColonelBlimp/cwtrainer/internal/cw"
)

const (
	// MaxCatalogLines is the size of the fixed pair sequence catalog.
	MaxCatalogLines = 6
	// ContextTokensPerLine is how many call-like tokens make one context line.
	ContextTokensPerLine = 3
	// ReanchorTotalReps is the combined low+high repetition count of one
	// reanchor iteration.
	ReanchorTotalReps = 16
)

// contextPrefixes are the prefixes used to build call-like context tokens.
var contextPrefixes = []string{"W", "K", "N", "AA", "AB", "NU", "DL", "F", "I"}

const (
	contextDigits  = "0123456789"
	contextLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// PairSequences returns up to n lines from the fixed catalog of dense
// two-symbol interleavings used by the contrast and overspeed modes.
// The catalog is deliberately literal: the same pair always drills the
// same sequences.
func PairSequences(pair [2]rune, n int) []string {
	a := string(cw.Upper(pair[0]))
	b := string(cw.Upper(pair[1]))
	catalog := []string{
		a + b + a + b + a + "  " + b + a + a + b + "  " + a + b + b + b + a,
		b + a + b + a + b + "  " + a + b + b + a + "  " + b + b + a + a + b,
		strings.Repeat(a, 4) + "  " + strings.Repeat(b, 4) + "  " + a + b + a + b + a + b,
		a + a + b + b + "  " + b + a + a + b + "  " + a + b + b + a + a,
		b + b + a + a + "  " + a + b + a + a + b + "  " + b + a + b + b + a,
		a + b + a + a + b + "  " + b + a + b + a + a + "  " + a + a + b + b + a,
	}
	if n < 0 {
		n = 0
	}
	if n > len(catalog) {
		n = len(catalog)
	}
	return catalog[:n]
}

// ContextLines builds up to n lines of synthetic call-like tokens, three
// tokens per line, with both pair members inserted at random positions in
// every token. The randomness is drill content only; timing is unaffected.
func ContextLines(rng *rand.Rand, pair [2]rune, n int) []string {
	a := string(cw.Upper(pair[0]))
	b := string(cw.Upper(pair[1]))

	if n < 0 {
		n = 0
	}
	tokens := make([]string, 0, n*ContextTokensPerLine)
	for i := 0; i < n*ContextTokensPerLine; i++ {
		s := contextPrefixes[rng.IntN(len(contextPrefixes))] +
			randomRun(rng, contextDigits, 1, 3) +
			randomRun(rng, contextLetters, 2, 3)
		s = insertAt(s, a, rng.IntN(len(s)+1))
		s = insertAt(s, b, rng.IntN(len(s)+1))
		tokens = append(tokens, s)
	}

	lines := make([]string, 0, n)
	for i := 0; i < len(tokens); i += ContextTokensPerLine {
		lines = append(lines, strings.Join(tokens[i:i+ContextTokensPerLine], "  "))
	}
	return lines
}

// randomRun draws between minLen and maxLen characters from alphabet.
func randomRun(rng *rand.Rand, alphabet string, minLen, maxLen int) string {
	length := minLen + rng.IntN(maxLen-minLen+1)
	var sb strings.Builder
	for i := 0; i < length; i++ {
		sb.WriteByte(alphabet[rng.IntN(len(alphabet))])
	}
	return sb.String()
}

func insertAt(s, ins string, pos int) string {
	return s[:pos] + ins + s[pos:]
}

// BlockReps splits the reanchor repetition budget between the low and the
// high WPM block. At balance 0 both blocks get equal character counts; at
// balance 1 the split approximates equal wall-clock time, giving the slow
// block the larger share (low:high ~ highWPM:lowWPM). Intermediate values
// interpolate linearly. The low side is rounded and clamped first and the
// high side is fixed by subtraction, so the two always sum to
// ReanchorTotalReps with both at least 1.
func BlockReps(balance, lowWPM, highWPM float64) (low, high int) {
	equalFrac := 0.5
	timeFrac := highWPM / (lowWPM + highWPM)
	frac := equalFrac + balance*(timeFrac-equalFrac)

	low = int(math.Round(ReanchorTotalReps * frac))
	if low < 1 {
		low = 1
	}
	if low > ReanchorTotalReps-1 {
		low = ReanchorTotalReps - 1
	}
	high = ReanchorTotalReps - low
	return low, high
}
