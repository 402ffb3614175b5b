package main

import (
	"os"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
