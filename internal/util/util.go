// Package util holds small helpers shared across packages.
package util

import (
	"strings"
	"time"
	"unicode"
)

// SafeFileName converts an arbitrary identifier into a lowercase file name
// fragment: runs of non-alphanumeric characters collapse to one underscore.
func SafeFileName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}

// Timestamp renders t in the compact form used for report and export file
// names.
func Timestamp(t time.Time) string {
	return t.UTC().Format("20060102_150405")
}
