package main

import (
	"os"

	"github.com/cfgsync/cfgsync/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		cli.PrintError(err)
		os.Exit(1)
	}
}
