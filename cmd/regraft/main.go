package main

import (
	"fmt"
	"os"

	"github.com/tallgren/regraft/internal/cmd"
	"github.com/tallgren/regraft/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if stage := errors.StageOf(err); stage != "" {
			fmt.Fprintf(os.Stderr, "regraft: %s: %v\n", stage, err)
		} else {
			fmt.Fprintf(os.Stderr, "regraft: %v\n", err)
		}
		os.Exit(1)
	}
}
