package main

import (
	"os"

	"github.com/capscade/capscade/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
