// Package main is the entry point for the streamtv application.
package main

import (
	"os"

	"github.com/tgrayson/streamtv/cmd/streamtv/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
