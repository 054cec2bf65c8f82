package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/idemcheck/internal/cli"
	"github.com/roach88/idemcheck/internal/idem"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// The report on stdout already states a negative verdict.
		if !errors.Is(err, idem.ErrNotIdempotent) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
