package main

import (
	"github.com/3leaps/slurmlongrun/internal/cmd"
)

// Populated by goreleaser / make via -ldflags.
var (
	version string
	commit  string
	date    string
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	cmd.Execute()
}
