package main

import (
	"os"

	"github.com/embermind/aura/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
