// Package numbering allocates sequential display numbers for findings
// and their cascade records (C#, NC#, D#, R#) and computes the offsets
// contributed by earlier units of the same inspection.
package numbering

import (
	"strconv"
	"strings"
)

// NextNumber scans the existing numbers carrying the given prefix and
// returns max+1, or 1 when none parse. Blank and malformed entries are
// ignored so a corrupted row never stalls allocation.
func NextNumber(numbers []string, prefix string) int {
	max := 0
	for _, raw := range numbers {
		s := strings.TrimSpace(raw)
		if s == "" || !strings.HasPrefix(s, prefix) {
			continue
		}
		n, err := strconv.Atoi(s[len(prefix):])
		if err != nil || n <= 0 {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1
}

// Format renders a number with its prefix ("C", "NC", "D", "R").
func Format(prefix string, n int) string {
	return prefix + strconv.Itoa(n)
}
