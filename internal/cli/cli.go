// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for ecoroute.
package cli

import (
	"fmt"
	"os"
	"runtime"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdRoute Command = iota
	CmdSuggest
	CmdAccept
	CmdSavings
	CmdModels
	CmdConfig
	CmdVersion
	CmdHelp
)

// Exit codes for command failures.
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
)

const usageText = `ecoroute - cost and carbon aware AI model routing

Ecoroute decides which model should answer a query. It never calls the
model itself: it classifies query complexity, checks a semantic cache of
prior answers, and picks the cheapest adequate model from your catalog.

Usage:
  ecoroute <command> [flags] [arguments]

Commands:
  route <query>                Decide the best model for a query
  suggest --model <id> <query> Check a chosen model against the query
  accept --model <id> <query>  Accept a downgrade suggestion and record it
  savings [history|period|pairs]
                               Report accumulated savings
  models                       List the model catalog
  config [show|init|path]      Manage configuration
  version                      Show version information
  help                         Show this help

Flags:
  --json            Machine-readable JSON output
  --model <id>      Chosen model id for suggest/accept
  --complexity <n>  Record the accept against a known score instead of
                    re-classifying the query
  --days <n>        Window size for 'savings period' (default 30)
  --config <path>   Use an alternate config file

Examples:
  ecoroute route "what is the capital of France"
  ecoroute suggest --model gpt-4o "rename this variable"
  ecoroute accept --model gpt-4o "rename this variable"
  ecoroute savings period --days 7 --json

Environment:
  ECOROUTE_OPENROUTER_KEY  API key for the complexity scorer
  ECOROUTE_GEMINI_KEY      API key for cache embeddings
  ECOROUTE_CATALOG         Path to the model catalog file
`

// Parse maps os.Args onto a command and its remaining arguments.
func Parse() (Command, []string) {
	if len(os.Args) < 2 {
		return CmdHelp, nil
	}

	cmd := os.Args[1]
	rest := os.Args[2:]

	switch cmd {
	case "route", "r":
		return CmdRoute, rest
	case "suggest":
		return CmdSuggest, rest
	case "accept":
		return CmdAccept, rest
	case "savings", "stats":
		return CmdSavings, rest
	case "models", "catalog":
		return CmdModels, rest
	case "config":
		return CmdConfig, rest
	case "version", "--version", "-v":
		return CmdVersion, rest
	case "help", "--help", "-h":
		return CmdHelp, rest
	default:
		fmt.Fprintf(os.Stderr, "ecoroute: unknown command %q\n", cmd)
		if suggestion := SuggestCommand(cmd); suggestion != "" {
			fmt.Fprintf(os.Stderr, "Did you mean %q?\n", suggestion)
		}
		fmt.Fprintf(os.Stderr, "Run 'ecoroute help' for usage.\n")
		os.Exit(ExitUsageError)
		return CmdHelp, nil
	}
}

// HandleHelp prints usage information.
func HandleHelp() {
	fmt.Print(usageText)
}

// HandleVersion prints version information.
func HandleVersion(args []string) {
	parser := NewArgParser(args)
	if parser.BoolFlag("json") {
		resp := NewJSONResponse("version", map[string]string{
			"version":    Version,
			"git_commit": GitCommit,
			"build_date": BuildDate,
			"go_version": runtime.Version(),
			"platform":   runtime.GOOS + "/" + runtime.GOARCH,
		})
		resp.Print()
		return
	}
	fmt.Printf("ecoroute %s\n", Version)
	fmt.Printf("  commit:   %s\n", GitCommit)
	fmt.Printf("  built:    %s\n", BuildDate)
	fmt.Printf("  go:       %s\n", runtime.Version())
	fmt.Printf("  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
