package main

import (
	"os"

	"github.com/m30lab/flowtwin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
