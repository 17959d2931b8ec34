// internal/cw/cw.go
// Package cw holds the Morse code table and element timing model used by
// the synthesizer and drill runners.
package cw

import "math/rand/v2"

// Morse code timing ratios (ITU standard)
// These are fixed ratios defined by the International Telecommunication Union
const (
	// DahDitRatio is the ratio of dah duration to dit duration (ITU: 3:1)
	DahDitRatio = 3.0
	// IntraCharGapRatio is the ratio of the gap between elements within a character to dit (ITU: 1:1)
	IntraCharGapRatio = 1.0
	// InterCharGapRatio is the ratio of the gap between characters to dit (ITU: 3:1)
	InterCharGapRatio = 3.0
	// WordGapRatio is the ratio of the gap between words to dit (ITU: 7:1)
	WordGapRatio = 7.0

	// DitUnit is the PARIS-derived dit length numerator: at W words per
	// minute one dit lasts 1.2/W seconds.
	DitUnit = 1.2
)

// Code maps a supported symbol (A-Z, 0-9) to its dot/dash sequence.
var Code = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".",
	'F': "..-.", 'G': "--.", 'H': "....", 'I': "..", 'J': ".---",
	'K': "-.-", 'L': ".-..", 'M': "--", 'N': "-.", 'O': "---",
	'P': ".--.", 'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-",
	'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-", 'Y': "-.--",
	'Z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
}

// Supported reports whether the symbol has a Morse code assignment.
// Lowercase letters are folded to uppercase.
func Supported(symbol rune) bool {
	_, ok := Code[Upper(symbol)]
	return ok
}

// Upper folds an ASCII lowercase letter to uppercase.
func Upper(symbol rune) rune {
	if symbol >= 'a' && symbol <= 'z' {
		return symbol - 'a' + 'A'
	}
	return symbol
}

// DitSeconds converts words-per-minute to the duration of one dit in
// seconds. Values below 1 WPM are treated as 1 WPM.
func DitSeconds(wpm float64) float64 {
	if wpm < 1 {
		wpm = 1
	}
	return DitUnit / wpm
}

// Jitter applies a percentage jitter to a base duration: the result is
// drawn uniformly from [base-base*pct, base+base*pct] and clamped to be
// non-negative. A pct <= 0 returns base unchanged.
func Jitter(rng *rand.Rand, base, pct float64) float64 {
	if pct <= 0 {
		return base
	}
	delta := base * pct
	d := base + (rng.Float64()*2-1)*delta
	if d < 0 {
		return 0
	}
	return d
}
