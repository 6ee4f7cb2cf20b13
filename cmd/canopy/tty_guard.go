package main

import (
	"os"
	"strings"
)

// Bubble Tea probes the terminal on startup (background color, cursor
// position) by writing OSC/DSR queries to stdout. Under a captured PTY
// those bytes land in the output stream, which corrupts --robot-dump
// JSON and anything else a script reads from a pipe. Termenv skips all
// probing when CI is set, so machine-facing invocations get CI=1 before
// any renderer is constructed.
func init() {
	if os.Getenv("CI") != "" {
		return
	}
	robot := os.Getenv("CANOPY_ROBOT") == "1"
	test := os.Getenv("CANOPY_TEST_MODE") != ""
	if shouldSuppressTTYQueries(os.Args, robot, test) {
		_ = os.Setenv("CI", "1")
	}
}

// shouldSuppressTTYQueries decides whether this invocation exists to
// produce machine-readable output. --export-wizard is deliberately not
// here: it runs huh forms and needs the real terminal.
func shouldSuppressTTYQueries(args []string, envRobot, envTest bool) bool {
	if envRobot || envTest {
		return true
	}
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--robot-"):
			return true
		case arg == "--version" || arg == "--help":
			return true
		case arg == "--export" || strings.HasPrefix(arg, "--export="):
			return true
		}
	}
	return false
}
