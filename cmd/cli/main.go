// Package main is the entry point for the fedq CLI binary.
package main

import (
	"os"

	cli "fedquery/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
