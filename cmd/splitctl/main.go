package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "splitctl",
	Short: "splitctl - inspect and exercise the split controllers",
	Long: `splitctl runs the built-in simulation scenarios against the controllers,
reads the decision journal, and queries a running splitguard server.`,
	SilenceUsage: true,
}

var (
	apiAddr  string
	apiToken string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7480", "API server address")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("SPLITGUARD_API_TOKEN"), "API bearer token")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
