// Command signalsim runs the intersection controller on the host: scripted
// scenarios, an interactive terminal view and the transition journal.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
