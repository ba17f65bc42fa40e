package main

import (
	"os"

	"golang.org/x/term"
)

// isTerminal returns true if stdout is connected to a TTY, the same check
// the teacher's internal/ui package makes before deciding whether to color
// its own status/doctor output.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// shouldUseColor follows the same conventions the teacher's ui.ShouldUseColor
// does: NO_COLOR and CLICOLOR=0 force plain output, CLICOLOR_FORCE forces
// color even off a TTY, otherwise it falls back to TTY detection.
func shouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if os.Getenv("CLICOLOR_FORCE") != "" {
		return true
	}
	return isTerminal()
}
