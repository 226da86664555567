package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "comment-catcher",
	Short: "Flag code comments a change set may have made stale",
	Long: `comment-catcher inspects a change set, walks the dependency graph
around the changed files, and asks a language model which nearby comments
no longer match the code.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(checkCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
