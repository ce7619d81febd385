// Package main is conductor's entry point.
package main

import (
	"fmt"
	"os"

	"github.com/agentfleet/conductor/cmd/conductor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
