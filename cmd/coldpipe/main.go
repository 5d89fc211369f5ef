package main

import (
	"log/slog"
	"os"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	if err := newCLIApp().Run(os.Args); err != nil {
		slog.Error("coldpipe failed", "error", err)
		os.Exit(1)
	}
}
