// Package main provides the poisync command.
package main

import (
	"os"

	"github.com/mapierhub/poisync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
