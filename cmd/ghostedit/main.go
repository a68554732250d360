// Package main provides the entry point for the ghostedit daemon.
package main

import (
	"fmt"
	"os"

	"github.com/ghostedit/ghostedit/cmd/ghostedit/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
