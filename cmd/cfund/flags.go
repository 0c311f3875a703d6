package main

import (
	"github.com/calehh/cfund-app/config"
	"github.com/spf13/cobra"
)

const (
	FlagHome      = "home"
	FlagChainID   = "chain-id"
	FlagOverwrite = "overwrite"
)

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.Flags().StringVarP(url, "url", "u", "http://127.0.0.1:26657", "cfund node rpc url")
}

func homeFlag(cmd *cobra.Command, home *string) {
	cmd.Flags().StringVarP(home, FlagHome, "d", "", "home directory (default "+config.DefaultHomeDir+")")
}

func keyFlag(cmd *cobra.Command, key *string) {
	cmd.Flags().StringVarP(key, "key", "k", "", "signing key file (default <home>/"+config.DefaultKeyFile+")")
}
