// Package main provides the entry point for the memoryd hook-script
// command-line tool.
package main

import (
	"github.com/contextmemory/workmem/cmd/memoryd/cmd"
)

func main() {
	cmd.Execute()
}
