// Package template patches uploaded automation scripts with dispatch data.
package template

import (
	"encoding/json"
	"strings"
)

// Placeholder is the line marker replaced by the phone number assignment.
const Placeholder = "# PHONE_NUMBERS_PLACEHOLDER"

// InjectNumbers replaces the first Placeholder in src with a Python list assignment
// of numbers. found is false when src has no placeholder; src is then returned unchanged.
func InjectNumbers(src string, numbers []string) (out string, found bool) {
	i := strings.Index(src, Placeholder)
	if i < 0 {
		return src, false
	}
	return src[:i] + Assignment(numbers) + src[i+len(Placeholder):], true
}

// Assignment renders `phone_numbers = [...]`. JSON string literals of digit strings are valid Python.
func Assignment(numbers []string) string {
	if numbers == nil {
		numbers = []string{}
	}
	b, _ := json.Marshal(numbers)
	return "phone_numbers = " + string(b)
}
