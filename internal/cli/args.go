// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Unified argument parsing for all CLI commands.
package cli

import (
	"strconv"
	"strings"
)

// ArgParser provides unified argument parsing for CLI commands.
// It handles multiple flag formats consistently:
//   - Long flags: --flag value or --flag=value
//   - Short flags: -f value
//   - Boolean flags: --flag (no value needed)
//   - Positional arguments: arguments without flags
//   - Subcommands: first positional argument
type ArgParser struct {
	subcommand string
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
	raw        []string
}

// NewArgParser creates an argument parser from raw arguments.
//
// Example:
//
//	args := NewArgParser([]string{"period", "--days", "30", "--json"})
//	args.Subcommand()     // "period"
//	args.Flag("days")     // "30"
//	args.BoolFlag("json") // true
func NewArgParser(raw []string) *ArgParser {
	parser := &ArgParser{
		flags:      make(map[string]string),
		boolFlags:  make(map[string]bool),
		positional: make([]string, 0),
		raw:        raw,
	}

	i := 0
	for i < len(raw) {
		arg := raw[i]

		if strings.HasPrefix(arg, "-") {
			// --flag=value format
			if strings.Contains(arg, "=") {
				parts := strings.SplitN(arg, "=", 2)
				flagName := strings.TrimLeft(parts[0], "-")
				flagValue := parts[1]

				// Boolean flags can be explicit: --json=true
				if flagValue == "true" || flagValue == "false" {
					parser.boolFlags[flagName] = flagValue == "true"
				} else {
					parser.flags[flagName] = flagValue
				}
				i++
				continue
			}

			flagName := strings.TrimLeft(arg, "-")

			if i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
				parser.flags[flagName] = raw[i+1]
				i += 2
			} else {
				parser.boolFlags[flagName] = true
				i++
			}
		} else {
			parser.positional = append(parser.positional, arg)
			i++
		}
	}

	if len(parser.positional) > 0 {
		parser.subcommand = parser.positional[0]
	}

	return parser
}

// Subcommand returns the first positional argument, or "" if none.
func (p *ArgParser) Subcommand() string {
	return p.subcommand
}

// Flag returns the value of a string flag, or "" if not set.
func (p *ArgParser) Flag(name string) string {
	if val, ok := p.flags[name]; ok {
		return val
	}
	name = strings.TrimLeft(name, "-")
	if val, ok := p.flags[name]; ok {
		return val
	}
	return ""
}

// FlagOrDefault returns the flag value or a default if not set.
func (p *ArgParser) FlagOrDefault(name, defaultValue string) string {
	if val := p.Flag(name); val != "" {
		return val
	}
	return defaultValue
}

// FlagIntOrDefault returns the flag value as an integer or a default.
func (p *ArgParser) FlagIntOrDefault(name string, defaultValue int) int {
	val := p.Flag(name)
	if val == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return n
}

// BoolFlag returns the value of a boolean flag, or false if not set.
func (p *ArgParser) BoolFlag(name string) bool {
	if val, ok := p.boolFlags[name]; ok {
		return val
	}
	name = strings.TrimLeft(name, "-")
	if val, ok := p.boolFlags[name]; ok {
		return val
	}
	return false
}

// HasFlag returns true if the flag exists in either form.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, hasString := p.flags[name]
	_, hasBool := p.boolFlags[name]
	return hasString || hasBool
}

// Positional returns the positional argument at index, or "" out of bounds.
// Index 0 is the subcommand.
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns all positional arguments starting from index.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return []string{}
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// JoinPositional joins positional arguments from startIndex into one string.
// Useful for commands that accept multi-word queries.
func (p *ArgParser) JoinPositional(startIndex int) string {
	return strings.Join(p.PositionalFrom(startIndex), " ")
}
