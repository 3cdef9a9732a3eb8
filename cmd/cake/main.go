package main

import (
	"os"

	"github.com/ZeroSumQuant/cake/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
