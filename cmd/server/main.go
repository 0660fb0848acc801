// Package main implements the renaissance command: the HTTP server of the
// timed flash-recall training engine plus its database maintenance
// subcommands.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
