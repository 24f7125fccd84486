package main

import (
	"os"

	"portfolioapi/cmd/cli"
)

func main() {
	if err := cli.Run(); err != nil {
		os.Exit(1)
	}
}
