// Package main provides the guideline_extractor CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "guideline_extractor",
	Short: "Extract structured clinical content from scanned guideline documents",
	Long: `guideline_extractor sends each page of a scanned clinical guideline to a vision model and converts the replies into validated, typed content records.

A page is accepted only when every item on it validates. Rejected pages keep their raw reply and error list so they can be re-run.`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
