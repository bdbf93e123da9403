// Package main provides the cssdedupe CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/cssdedupe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
