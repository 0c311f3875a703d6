package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cfund",
	Short: "Crowdfunding ledger with contributor-approved spending",
	Long: `cfund keeps campaign funds in custody and releases them only for
spending requests approved by a majority of contributors.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(campaignCmd)
	rootCmd.AddCommand(requestCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
