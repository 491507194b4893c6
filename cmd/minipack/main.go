package main

import (
	"context"
	"os"

	"github.com/roach88/minipack/internal/cli"
)

// Version information (set via ldflags during build)
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	root := cli.NewRootCommand()
	root.Version = Version + " (" + Commit + ")"

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
