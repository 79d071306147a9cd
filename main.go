package main

import (
	"os"

	"github.com/eculver/aws-accounts/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
