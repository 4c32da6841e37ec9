package main

import (
	"os"

	"github.com/codemodus/sigtrap/cmd/sigtrap/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
