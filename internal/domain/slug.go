package domain

import (
	"strconv"
	"strings"
)

// NormalizeSlug lowercases s, collapses every run of characters outside
// [a-z0-9] into one dash, trims dashes and truncates to MaxSlugLen.
func NormalizeSlug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return truncateSlug(b.String(), MaxSlugLen)
}

func truncateSlug(s string, max int) string {
	if len(s) > max {
		s = s[:max]
	}
	return strings.Trim(s, "-")
}

// UniqueSlug returns candidate, or candidate with the smallest numeric
// suffix (-2, -3, ...) that is not in taken. The base is shortened when
// needed so the result stays within MaxSlugLen.
func UniqueSlug(candidate string, taken map[string]struct{}) string {
	if _, ok := taken[candidate]; !ok {
		return candidate
	}
	for n := 2; ; n++ {
		suffix := "-" + strconv.Itoa(n)
		s := truncateSlug(candidate, MaxSlugLen-len(suffix)) + suffix
		if _, ok := taken[s]; !ok {
			return s
		}
	}
}
