// Package main provides the adjoint CLI.
package main

import (
	"os"

	"github.com/adjoint-ml/adjoint/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
