// Package phone normalizes raw phone numbers against a country's format.
package phone

import "strings"

// Validate normalizes each raw number and keeps those with exactly expectedLength digits.
// A leading dialingCode is stripped before non-digits are removed. Order is preserved;
// rejected inputs are dropped without a report.
func Validate(numbers []string, dialingCode string, expectedLength int) []string {
	out := make([]string, 0, len(numbers))
	for _, raw := range numbers {
		n := strings.TrimSpace(raw)
		if dialingCode != "" {
			n = strings.TrimPrefix(n, dialingCode)
		}
		n = digitsOnly(n)
		if len(n) == expectedLength {
			out = append(out, n)
		}
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitLines splits a pasted block of numbers into non-blank lines.
func SplitLines(block string) []string {
	lines := strings.Split(block, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
