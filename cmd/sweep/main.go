// Command sweep traverses collections with the sweep engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sweep/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
