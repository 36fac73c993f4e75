// Package main provides the entry point for the workbench CLI.
package main

import (
	"os"

	"github.com/Chili6666/iclaude-workbench/cmd/workbench/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
