// internal/score/score.go
// Package score compares typed copy against the ground-truth lines of a
// session and appends the resulting metrics to the session log.
package score

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ColonelBlimp/cwtrainer/internal/drill"
)

// Metric names written to the session log.
const (
	MetricCharsTotal  = "chars_total"
	MetricLevenshtein = "levenshtein"
	MetricAccuracyPct = "accuracy_pct"
)

// Normalize uppercases the input and strips everything outside A-Z and
// 0-9, matching what the synthesizer can actually play.
func Normalize(s string) string {
	var sb strings.Builder
	for _, ch := range strings.ToUpper(s) {
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}

// Levenshtein returns the edit distance between two strings using the
// two-row dynamic programming formulation.
func Levenshtein(a, b string) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// Result holds the comparison of typed copy against ground truth.
type Result struct {
	// CharsTotal is the length of the normalized ground truth
	CharsTotal int
	// Distance is the Levenshtein distance to the normalized copy
	Distance int
	// AccuracyPct is (1 - distance/chars) * 100, floored at chars >= 1
	AccuracyPct float64
}

// Compare scores normalized typed copy against the normalized join of the
// ground-truth lines.
func Compare(sentLines []string, typed string) Result {
	expected := Normalize(strings.Join(sentLines, " "))
	got := Normalize(typed)

	total := len(expected)
	dist := 0
	if total > 0 {
		dist = Levenshtein(expected, got)
	}
	denom := total
	if denom < 1 {
		denom = 1
	}
	return Result{
		CharsTotal:  total,
		Distance:    dist,
		AccuracyPct: (1 - float64(dist)/float64(denom)) * 100,
	}
}

// AppendMetrics appends the three metrics rows to an existing session log.
// Rows keep the five-column shape of the event rows, with "metrics" in the
// timestamp column.
func AppendMetrics(logPath string, mode drill.Mode, pair string, res Result) error {
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows := [][]string{
		{"metrics", string(mode), pair, MetricCharsTotal, strconv.Itoa(res.CharsTotal)},
		{"metrics", string(mode), pair, MetricLevenshtein, strconv.Itoa(res.Distance)},
		{"metrics", string(mode), pair, MetricAccuracyPct, fmt.Sprintf("%.2f", res.AccuracyPct)},
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write metrics row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush metrics: %w", err)
	}
	return nil
}
