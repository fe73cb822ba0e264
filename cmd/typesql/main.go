// Command typesql compiles and verifies typed SQL queries.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/typesql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "typesql: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
