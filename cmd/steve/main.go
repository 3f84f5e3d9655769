package main

import (
	"os"

	"github.com/tillberg/autorestart"

	"github.com/soyeahso/steve/internal/cli"
)

func main() {
	// Rebuild-and-restart loop for local development.
	if os.Getenv("STEVE_DEV") == "1" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
