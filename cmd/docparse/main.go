package main

import (
	"fmt"
	"os"

	"github.com/joseph-ayodele/docparse/internal/cli"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	if err := cli.Execute(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
}
