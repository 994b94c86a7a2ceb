package main

import (
	"os"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
