package main

import (
	"os"

	"github.com/ppiankov/onefeed/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
