package main

import (
	"context"

	"github.com/calehh/cfund-app/crypto"
	"github.com/spf13/cobra"
)

type accountArguments struct {
	txArguments
	Address string
}

var accountArgs accountArguments

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the balance and nonce of an identity, by default the signing key's",
	Args:  cobra.ExactArgs(0),
	RunE:  accountRun,
}

func init() {
	txFlags(accountCmd, &accountArgs.txArguments)
	accountCmd.Flags().StringVarP(&accountArgs.Address, "address", "a", "", "account address")
}

func accountRun(cmd *cobra.Command, args []string) error {
	var addrStr = accountArgs.Address
	if addrStr == "" {
		k, err := crypto.LoadKeyFile(accountArgs.keyPath())
		if err != nil {
			return err
		}
		addrStr = k.Address().Hex()
	}
	addr, err := parseAddressArg(addrStr)
	if err != nil {
		return err
	}
	cli, err := newClient(accountArgs.Url)
	if err != nil {
		return err
	}
	act, err := queryAccount(context.Background(), cli, addr)
	if err != nil {
		return err
	}
	return printJSON(act)
}
