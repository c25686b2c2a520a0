// Package main is the entry point for the aisvc server CLI.
//
// Usage:
//
//	aisvc [flags] <command>
//
// Commands:
//
//	serve    - Run the AI service HTTP server
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/mediahub/aisvc/cmd/aisvc/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
