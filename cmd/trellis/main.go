// Package main provides the entry point for the trellis CLI.
package main

import (
	"fmt"
	"os"

	"github.com/chartwell/trellis/internal/cli"
	trelliserrors "github.com/chartwell/trellis/internal/errors"
)

func main() {
	if err := cli.Execute(); err != nil {
		if te := trelliserrors.AsTrellisError(err); te != nil {
			fmt.Fprintln(os.Stderr, te.UserMessage())
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
