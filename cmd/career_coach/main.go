// Package main provides the entry point for the career coaching API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "career_coach",
	Short:   "Career coaching tools HTTP API server",
	Long:    "Career coach runs AI career tools (job match, resume, interview prep and more) against a caller's profile, streams progress over SSE and charges tokens for each stored result.",
	Version: version,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
