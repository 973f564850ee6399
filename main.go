package main

import (
	"os"

	"github.com/spigell/segcompare/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
