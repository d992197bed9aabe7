package app

import "strings"

// Judge accepts an answer when, ignoring case and surrounding space, either
// string contains the other. Blank answers are never accepted.
func Judge(typed, canonical string) bool {
	t := strings.ToLower(strings.TrimSpace(typed))
	c := strings.ToLower(strings.TrimSpace(canonical))
	if t == "" || c == "" {
		return false
	}
	return strings.Contains(t, c) || strings.Contains(c, t)
}
