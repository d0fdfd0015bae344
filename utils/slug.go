package utils

import (
	"fmt"
	"strings"
)

// Slugify lowercases the source, collapses every run of non-alphanumeric
// characters into a single hyphen and trims leading/trailing hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			if b.Len() > 0 {
				pendingHyphen = true
			}
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UniqueSlug derives a slug from source that is unique according to taken.
// On collision a numeric disambiguator is appended: base, base-2, base-3...
// Callers exclude the row being saved from the taken check so that an
// unchanged source keeps its slug.
func UniqueSlug(source string, taken func(string) (bool, error)) (string, error) {
	base := Slugify(source)
	if base == "" {
		base = "untitled"
	}
	candidate := base
	for i := 2; ; i++ {
		exists, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
