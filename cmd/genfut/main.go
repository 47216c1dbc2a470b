// Command genfut compiles a Futhark kernel and generates a typed Go package
// around the resulting library.
package main

import (
	"os"

	"github.com/roach88/genfut/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
