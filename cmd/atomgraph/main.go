// Command atomgraph compiles, runs and verifies reactive atom graphs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/atomgraph/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
