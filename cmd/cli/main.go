package main

import (
	"os"

	"github.com/branchd-dev/roleportal/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
