// Sprig builds scenes from recursive production-rule scripts.
//
// Usage:
//
//	# Build a script and print its objects
//	sprig build tree.sprig --seed 7
//
//	# Record a build and inspect it later
//	sprig build tree.sprig --db ./sprig.db
//	sprig trace --db ./sprig.db latest
//
//	# Verify recorded runs still build identically
//	sprig replay --db ./sprig.db
//
//	# Run conformance scenarios
//	sprig test ./scenarios
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sprig/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
