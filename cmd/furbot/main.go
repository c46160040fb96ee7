package main

import (
	"os"

	"github.com/vaisest/fakefurbot/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
