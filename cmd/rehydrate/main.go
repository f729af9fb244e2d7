package main

import (
	"os"

	"github.com/rcliao/rehydrate/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
