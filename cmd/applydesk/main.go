// applydesk - local editing daemon and CLI for application documents
// Keeps version history for cover letters and resumes and talks to the
// application backend for grammar, generation and automation.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
