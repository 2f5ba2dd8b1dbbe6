// ecoroute - cost and carbon aware AI model routing.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/jeranaias/ecoroute/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	// A local .env is a convenience for development; absence is normal.
	if err := godotenv.Load(); err == nil {
		log.Printf("MAIN: loaded environment from .env")
	}

	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdRoute:
		cli.HandleRoute(args)
	case cli.CmdSuggest:
		cli.HandleSuggest(args)
	case cli.CmdAccept:
		cli.HandleAccept(args)
	case cli.CmdSavings:
		cli.HandleSavings(args)
	case cli.CmdModels:
		cli.HandleModels(args)
	case cli.CmdConfig:
		cli.HandleConfig(args)
	case cli.CmdVersion:
		cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.HandleHelp()
	}
}
