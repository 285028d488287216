package main

import (
	"os"

	"github.com/kzidane/askbook/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
