// Package main provides the entry point for the sentinel CLI.
package main

import (
	"os"

	"github.com/RajeshTechForge/sentinel-rag/cmd/sentinel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
