// Command termscene wraps a PTY-driven interactive program, drives
// recorded scripts against it, and inspects dump files. Grounded on
// internal/cmd/root.go's cobra root command wiring.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
