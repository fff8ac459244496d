// Package main is the entry point for the optiscope CLI.
package main

import (
	"os"

	"github.com/jmylchreest/optiscope/cmd/optiscope/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
