// Package main is the entry point for posdata.
package main

import (
	"fmt"
	"os"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
