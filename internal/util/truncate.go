// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

// TruncateRunes truncates a string to a maximum number of runes.
// Counting runes rather than bytes avoids splitting multi-byte UTF-8
// characters. If the string is truncated, "..." replaces the tail.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// RuneLen returns the number of runes in a string.
func RuneLen(s string) int {
	return len([]rune(s))
}
