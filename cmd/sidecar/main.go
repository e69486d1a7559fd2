// Package main provides the entry point for the Sidecar CLI.
package main

import (
	"fmt"
	"os"

	"github.com/codeglide/sidecar/cmd/sidecar/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
