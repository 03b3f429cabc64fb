// Command stackqa answers programming questions from Stack Overflow history.
package main

import (
	"os"

	"github.com/custodia-labs/stackqa/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
