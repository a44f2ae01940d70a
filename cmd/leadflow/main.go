// Command leadflow runs the lead automation engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/leadflow/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
