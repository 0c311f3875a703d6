package main

import (
	"fmt"
	"runtime"

	"github.com/cometbft/cometbft/version"
	"github.com/spf13/cobra"
)

// GitCommit is set with -ldflags "-X main.GitCommit=...".
var GitCommit string

const Version = "0.1.0"

func versionString() string {
	if len(GitCommit) >= 8 {
		return Version + "-" + GitCommit[:8]
	}
	return Version
}

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the cfund, CometBFT and Go versions",
	Aliases: []string{"V"},
	Args:    cobra.ExactArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cfund %s\ncometbft %s\n%s\n", versionString(), version.TMCoreSemVer, runtime.Version())
	},
}
