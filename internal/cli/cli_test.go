// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"
)

func TestArgParser(t *testing.T) {
	parser := NewArgParser([]string{"period", "--days", "30", "--since=2026-01-01", "--json", "extra"})

	if got := parser.Subcommand(); got != "period" {
		t.Errorf("Subcommand = %q, want period", got)
	}
	if got := parser.Flag("days"); got != "30" {
		t.Errorf("Flag(days) = %q, want 30", got)
	}
	if got := parser.Flag("since"); got != "2026-01-01" {
		t.Errorf("Flag(since) = %q", got)
	}
	if !parser.BoolFlag("json") {
		t.Error("BoolFlag(json) = false, want true")
	}
	if got := parser.FlagIntOrDefault("days", 7); got != 30 {
		t.Errorf("FlagIntOrDefault(days) = %d, want 30", got)
	}
	if got := parser.FlagIntOrDefault("missing", 7); got != 7 {
		t.Errorf("FlagIntOrDefault(missing) = %d, want 7", got)
	}
	if got := parser.PositionalCount(); got != 2 {
		t.Errorf("PositionalCount = %d, want 2", got)
	}
	if got := parser.Positional(1); got != "extra" {
		t.Errorf("Positional(1) = %q", got)
	}
}

func TestArgParserExplicitBool(t *testing.T) {
	parser := NewArgParser([]string{"--json=false", "--verbose=true"})
	if parser.BoolFlag("json") {
		t.Error("--json=false should be false")
	}
	if !parser.BoolFlag("verbose") {
		t.Error("--verbose=true should be true")
	}
}

func TestArgParserJoinPositional(t *testing.T) {
	parser := NewArgParser([]string{"what", "is", "a", "goroutine", "--model", "gpt-4o"})
	if got := parser.JoinPositional(0); got != "what is a goroutine" {
		t.Errorf("JoinPositional = %q", got)
	}
	if got := parser.Flag("model"); got != "gpt-4o" {
		t.Errorf("Flag(model) = %q", got)
	}
}

func TestArgParserEmpty(t *testing.T) {
	parser := NewArgParser(nil)
	if parser.Subcommand() != "" || parser.PositionalCount() != 0 {
		t.Error("empty parser should have no subcommand or positionals")
	}
	if parser.Flag("anything") != "" || parser.BoolFlag("anything") {
		t.Error("empty parser should have no flags")
	}
}

func TestSuggestCommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"rotue", "route"},
		{"savigns", "savings"},
		{"modles", "models"},
		{"hlep", "help"},
		{"confgi", "config"},
		{"zzzzzzzz", ""},
		{"x", ""},
	}

	for _, tt := range tests {
		if got := SuggestCommand(tt.input); got != tt.want {
			t.Errorf("SuggestCommand(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"route", "route", 0},
		{"route", "rotue", 2},
		{"kitten", "sitting", 3},
	}
	for _, tt := range tests {
		if got := levenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestJSONResponse(t *testing.T) {
	resp := NewJSONResponse("route", map[string]int{"score": 5})
	if !resp.Success || resp.Error != nil {
		t.Errorf("success response malformed: %+v", resp)
	}
	if resp.Command != "route" || resp.Timestamp == "" {
		t.Errorf("metadata missing: %+v", resp)
	}

	errResp := NewJSONErrorResponse("route", errTest)
	if errResp.Success || errResp.Error == nil || *errResp.Error != "boom" {
		t.Errorf("error response malformed: %+v", errResp)
	}
}

var errTest = errFixed("boom")

type errFixed string

func (e errFixed) Error() string { return string(e) }
