// Package prune bounds free text before it enters a prompt.
package prune

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMarker   = "[kommissar pruned]"
	DefaultMaxBytes = 8 * 1024
	DefaultMaxLines = 120
)

// Exceeds reports whether s is over either budget.
func Exceeds(s string, maxBytes, maxLines int) bool {
	return len(s) > maxBytes || CountLines(s) > maxLines
}

func CountLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// Clamp returns s unchanged while it fits the default budgets, otherwise
// a head slice with a marker noting what was dropped. The cut never
// splits a UTF-8 rune.
func Clamp(s, label string) string {
	if !Exceeds(s, DefaultMaxBytes, DefaultMaxLines) {
		return s
	}
	head := boundedPrefix(s, DefaultMaxBytes, DefaultMaxLines)
	return fmt.Sprintf("%s\n\n%s %s truncated (bytes=%d, lines=%d)",
		head, DefaultMarker, label, len(s), CountLines(s))
}

func boundedPrefix(s string, maxBytes, maxLines int) string {
	if len(s) == 0 || maxBytes <= 0 || maxLines <= 0 {
		return ""
	}
	prefix := safeUTF8Prefix(s, maxBytes)
	lines := strings.Split(prefix, "\n")
	if len(lines) <= maxLines {
		return prefix
	}
	return strings.Join(lines[:maxLines], "\n")
}

func safeUTF8Prefix(s string, maxBytes int) string {
	if maxBytes >= len(s) {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
