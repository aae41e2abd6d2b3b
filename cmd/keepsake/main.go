package main

import (
	"os"

	"github.com/keepsake-dev/keepsake/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
