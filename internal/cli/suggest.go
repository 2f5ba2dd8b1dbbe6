// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - Command suggestion for typo correction.
package cli

import (
	"strings"
)

// validCommands is the list of all valid ecoroute commands and aliases.
var validCommands = []string{
	"route",
	"suggest",
	"accept",
	"savings",
	"models",
	"config",
	"version",
	"help",
	// Aliases
	"r",       // route
	"stats",   // savings
	"catalog", // models
}

// SuggestCommand returns a suggested command if the input is close to a
// valid command, or "" when nothing is close enough.
func SuggestCommand(input string) string {
	input = strings.ToLower(input)

	// Very short inputs are likely intentional.
	if len(input) < 2 {
		return ""
	}

	// Edit distance tolerance scales with input length.
	maxDistance := 1
	if len(input) >= 4 {
		maxDistance = 2
	}
	if len(input) > 8 {
		maxDistance = 3
	}

	bestMatch := ""
	bestDistance := -1
	for _, cmd := range validCommands {
		distance := levenshteinDistance(input, cmd)
		if distance == 0 {
			return ""
		}
		if distance <= maxDistance && (bestDistance == -1 || distance < bestDistance) {
			bestDistance = distance
			bestMatch = cmd
		}
	}
	return bestMatch
}

// levenshteinDistance calculates the edit distance between two strings
// using the two-row rolling variant.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	cols := len(s2) + 1
	prev := make([]int, cols)
	curr := make([]int, cols)

	for j := 0; j < cols; j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j < cols; j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[cols-1]
}

// min3 returns the smallest of three ints.
func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
