package main

import (
	"os"

	"github.com/cuongbtq/niceshot/cmd/niceshot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
